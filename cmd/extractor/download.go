package main

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

func downloadLocation(urls *entity.DownloadURLs, format string) (string, error) {
	if urls == nil {
		return "", common.NewAppError("DOWNLOAD_ERROR", "job has no downloads yet", common.ErrNotFound)
	}
	var location string
	switch strings.ToLower(format) {
	case "csv":
		location = urls.CSV
	case "json":
		location = urls.JSON
	default:
		return "", common.NewAppError("DOWNLOAD_ERROR", fmt.Sprintf("unknown format %q (want csv or json)", format), common.ErrInvalidInput)
	}
	if location == "" {
		return "", common.NewAppError("DOWNLOAD_ERROR", fmt.Sprintf("job has no %s download", format), common.ErrNotFound)
	}
	return location, nil
}
