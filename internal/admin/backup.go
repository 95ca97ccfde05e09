package admin

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"WG-Access-Bot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BackupDatabase writes a pg_dump custom-format archive to filename.
func BackupDatabase(filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_dump", dsn, "-Fc", "-f", filename)
	return cmd.Run()
}

// RestoreDatabase restores the database from a dump.
func RestoreDatabase(filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_restore", "-d", dsn, filename)
	return cmd.Run()
}

// BackupToDir dumps into dir with a timestamped name and returns the path.
func BackupToDir(dir, dsn string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, "backup_"+time.Now().Format("20060102_150405")+".dump")
	if err := BackupDatabase(filename, dsn); err != nil {
		return "", err
	}
	return filename, nil
}

// CleanOldBackups removes dumps older than maxAge from dir.
func CleanOldBackups(dir string, maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(dir, "*backup_*.dump"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f)
		}
	}
	return nil
}

// AutoBackupDatabase runs the nightly dump plus cleanup and tells the
// operator how it went.
func AutoBackupDatabase(bot *tgbotapi.BotAPI, adminID int64, dsn string) {
	dir := "backups"
	filename, err := BackupToDir(dir, dsn)
	if err != nil {
		logger.Error("auto backup failed", zap.Error(err))
		logger.NotifyAdmin("Database auto-backup failed: " + err.Error())
		return
	}
	if err := CleanOldBackups(dir, 31*24*time.Hour); err != nil {
		logger.Warn("backup cleanup failed", zap.Error(err))
	}
	logger.Info("auto backup finished", zap.String("file", filename))
	if bot != nil && adminID != 0 {
		bot.Send(tgbotapi.NewMessage(adminID, "Database backup created: "+filename))
	}
}
