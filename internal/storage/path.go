package storage

import (
	"fmt"
	"path"
	"regexp"
)

var datasetNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// DatasetFilePath builds the hive-partitioned object key for one parquet
// data file, matching the layout the table DDL declares:
// <dataset>/year=<year>/data-<sequence>.parquet
func DatasetFilePath(dataset string, year, sequence int) (string, error) {
	if !datasetNamePattern.MatchString(dataset) {
		return "", fmt.Errorf("invalid dataset name: %q", dataset)
	}
	if year < 1900 || year > 9999 {
		return "", fmt.Errorf("invalid partition year: %d", year)
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	return path.Join(
		dataset,
		fmt.Sprintf("year=%04d", year),
		fmt.Sprintf("data-%05d.parquet", sequence),
	), nil
}
