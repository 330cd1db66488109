package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const HomeDirName = ".bizphotos"

func GetBizphotosHomeDirectory() (string, error) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("os.UserHomeDir(). %w", err)
	}

	dir := filepath.Join(homedir, HomeDirName)
	err = MakeSureDirExists(dir)
	if err != nil {
		return "", fmt.Errorf("MakeSureDirExists(dir). %w", err)
	}

	return dir, nil
}

func MakeSureDirExists(dirPath string) error {
	_, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		err = os.MkdirAll(dirPath, 0750)
		if err != nil {
			return fmt.Errorf("os.MkdirAll(dirPath, 0750) %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("os.Stat(dirPath) %w", err)
	}
	return nil
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("rand.Read(buf). %w", err)
	}
	return hex.EncodeToString(buf), nil
}
