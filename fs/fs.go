// Package fs holds the file system helpers of the ceremony binary.
package fs

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
)

const defaultDirectoryPermission = 0740

// DefaultFolderName is the folder, under the home folder, holding the
// database when none is given.
const DefaultFolderName = ".ceremony"

// HomeFolder returns the home folder of the current user.
func HomeFolder() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}

// DefaultFolder returns ~/.ceremony, or the working directory when the home
// folder is unknown.
func DefaultFolder() string {
	home, err := HomeFolder()
	if err != nil {
		return DefaultFolderName
	}
	return filepath.Join(home, DefaultFolderName)
}

// CreateSecureFolder creates folder readable by its owner and group only
// when it does not exist yet. An existing folder with wider permissions is
// refused.
func CreateSecureFolder(folder string) error {
	info, err := os.Lstat(folder)
	if os.IsNotExist(err) {
		return os.MkdirAll(folder, defaultDirectoryPermission)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", folder)
	}
	if perm := info.Mode().Perm(); perm&0o007 != 0 {
		return fmt.Errorf("folder %s is accessible to others (%#o)", folder, perm)
	}
	return nil
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates, or truncates, a file readable and writable by
// its owner only.
func CreateSecureFile(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	if err := fd.Chmod(0600); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}

// Files returns the paths of the files in folderPath with the given
// extension, sorted. An empty extension matches every file.
func Files(folderPath, ext string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		files = append(files, filepath.Join(folderPath, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
