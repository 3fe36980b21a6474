package stellarium

import (
	"bufio"
	"fmt"
	"os"
	"regexp"

	kitlog "github.com/go-kit/kit/log"
)

var (
	// Lines to ignore: blank or starting with a #.
	nativeNameCommentRx = regexp.MustCompile(`^\s*(#.*)?$`)
	// Record lines: identifier "quoted-name" _("quoted-translatable-text").
	nativeNameRecordRx = regexp.MustCompile(`^\s*(\w+)\s+"(.+)"\s+_\("(.+)"\)\s*$`)
)

// ReadNativeNames parses a sky-culture body-name table into an
// identifier-to-name map. Malformed lines are logged and skipped; only an
// unreadable file is an error.
func ReadNativeNames(path string, logger kitlog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open body names file %s: %s", path, err)
	}
	defer f.Close()

	names := make(map[string]string)
	totalRecords, readOk, lineNumber := 0, 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		lineNumber++
		if nativeNameCommentRx.MatchString(line) {
			continue
		}
		totalRecords++
		m := nativeNameRecordRx.FindStringSubmatch(line)
		if m == nil {
			logger.Log("level", "warn", "msg", "cannot parse record in body names file",
				"path", path, "line", lineNumber)
			continue
		}
		// The translatable text is the display name.
		names[m[1]] = m[3]
		readOk++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Log("level", "info", "msg", "loaded native body names", "read", readOk, "total", totalRecords)
	return names, nil
}
