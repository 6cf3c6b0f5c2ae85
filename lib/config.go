package lib

import (
	"bufio"
	"os"

	"github.com/gravitational/trace"
)

// ReadPassword reads the first line of the file and returns it. Used to keep
// client secrets out of the main configuration file.
func ReadPassword(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", trace.BadParameter("secret file %v does not exist", filename)
		}
		return "", trace.Wrap(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", trace.Wrap(err)
		}
		return "", trace.BadParameter("secret file %v is empty", filename)
	}
	return scanner.Text(), nil
}
