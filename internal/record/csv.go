package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"kvksnapshot/lib/osutil"
)

// WriteCSV writes the header followed by one row per record, in order.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(r.Values()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FileName returns the snapshot file name for a date in YYYYMMDD form,
// ex. kvk_snapshot_20261014.csv, a non-empty suffix is appended before the extension.
func FileName(prefix, compactDate, suffix string) string {
	name := fmt.Sprintf("%s_%s", prefix, compactDate)
	if suffix != "" {
		name += "_" + suffix
	}
	return name + ".csv"
}

// ExportFile atomically writes the records as CSV to dir/name and returns the full path.
func ExportFile(dir, name string, records []Record) (string, error) {
	path := filepath.Join(dir, name)
	err := osutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return WriteCSV(w, records)
	})
	if err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	return path, nil
}
