package storage

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webtree/pkg/utils"
)

// WriteVisitedLog writes every key in store to filePath, one per line, sorted.
func WriteVisitedLog(store VisitedStore, filePath string, logger *logrus.Entry) error {
	keys, err := store.VisitedKeys()
	if err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, key := range keys {
		if _, err := writer.WriteString(key + "\n"); err != nil {
			return fmt.Errorf("%w: write visited log '%s': %w", utils.ErrFilesystem, filePath, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	logger.Infof("Wrote %d visited keys to %s", len(keys), filePath)
	return nil
}
