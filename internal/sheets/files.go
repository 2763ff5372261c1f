package sheets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// exportFilePermissions is the mode for exported spreadsheet files.
const exportFilePermissions = 0o644

// normalizeName converts a sheet name to NFC so names typed on different
// platforms compare equal on the service.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// spreadsheetContentType picks the upload content type from the file extension.
func spreadsheetContentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return contentTypeXLS
	}

	return contentTypeXLSX
}

// ExportSheet downloads a sheet as a spreadsheet file and writes the raw
// bytes to destPath. The file is written to a temp file and renamed so a
// failed download never leaves a truncated file behind.
func (c *Client) ExportSheet(ctx context.Context, sheetID int64, destPath string) (*Export, error) {
	c.logger.Info("exporting sheet",
		slog.Int64("sheet_id", sheetID),
		slog.String("path", destPath),
	)

	resp, err := c.do(ctx, &request{
		method: http.MethodGet,
		path:   sheetPath(sheetID),
		accept: contentTypeXLS,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	n, err := writeFileAtomic(destPath, resp.Body)
	if err != nil {
		c.logger.Error("writing export failed",
			slog.Int64("sheet_id", sheetID),
			slog.String("path", destPath),
			slog.Int64("bytes_before_error", n),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("sheets: exporting sheet %d: %w", sheetID, err)
	}

	c.logger.Info("sheet exported",
		slog.Int64("sheet_id", sheetID),
		slog.String("path", destPath),
		slog.Int64("bytes", n),
	)

	return &Export{
		SheetID:     sheetID,
		Path:        destPath,
		Bytes:       n,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// ImportSheet uploads a local spreadsheet file as a new sheet named name.
// With a non-empty folderID the sheet is created in that folder, otherwise
// it lands in the user's default location. The first row is the header and
// the first column becomes the primary column. A non-"SUCCESS" Message in
// the result is not an error at this layer; callers decide what it means
// through ImportResult.Rejected.
func (c *Client) ImportSheet(ctx context.Context, name, localPath, folderID string) (*ImportResult, error) {
	name = normalizeName(name)

	c.logger.Info("importing sheet",
		slog.String("name", name),
		slog.String("path", localPath),
		slog.String("folder_id", folderID),
	)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("sheets: opening import file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sheets: stat import file: %w", err)
	}

	path := "/sheets/import"
	if folderID != "" {
		path = "/folders/" + url.PathEscape(folderID) + "/sheets/import"
	}

	var env importEnvelope

	err = c.doJSON(ctx, &request{
		method:      http.MethodPost,
		path:        path,
		rawQuery:    "sheetName=" + url.QueryEscape(name) + "&headerRowIndex=0&primaryColumnIndex=0",
		body:        f,
		length:      info.Size(),
		contentType: spreadsheetContentType(localPath),
		disposition: "attachment",
		timeout:     TimeoutImport,
	}, &env)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		ResultCode: env.ResultCode,
		SheetID:    env.Result.ID,
		SheetName:  env.Result.Name,
	}

	if env.Message != nil {
		result.Message = *env.Message
		result.HasMessage = true
	}

	c.logger.Info("sheet imported",
		slog.String("name", name),
		slog.Int64("sheet_id", result.SheetID),
		slog.String("message", result.Message),
	)

	return result, nil
}

// AttachFile uploads a local file as an attachment of a sheet.
func (c *Client) AttachFile(ctx context.Context, sheetID int64, localPath string) (*Attachment, error) {
	c.logger.Info("attaching file",
		slog.Int64("sheet_id", sheetID),
		slog.String("path", localPath),
	)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("sheets: opening attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sheets: stat attachment: %w", err)
	}

	var env resultEnvelope[attachmentResponse]

	err = c.doJSON(ctx, &request{
		method:      http.MethodPost,
		path:        sheetPath(sheetID) + "/attachments",
		body:        f,
		length:      info.Size(),
		contentType: contentTypeXLS,
		disposition: fmt.Sprintf("attachment; filename=%q", filepath.Base(localPath)),
	}, &env)
	if err != nil {
		return nil, err
	}

	return &Attachment{
		ID:       env.Result.ID,
		Name:     env.Result.Name,
		MimeType: env.Result.MimeType,
		SizeInKB: env.Result.SizeInKB,
	}, nil
}

// writeFileAtomic copies r into a temp file next to path and renames it
// into place. Parent directories are created as needed.
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, exportFilePermissions); err != nil {
		return n, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return n, nil
}
