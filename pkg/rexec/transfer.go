package rexec

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// UploadOutcome is the outcome of uploading a single local path, which
// may be a file or a directory.
type UploadOutcome struct {
	LocalPath  string
	RemotePath string
	// Files is the number of files that were uploaded.
	Files    int
	Bytes    int64
	Duration time.Duration
	// Err is a *TransferError if the upload failed.
	Err error
}

// Success returns true if the upload completed.
func (o *UploadOutcome) Success() bool {
	return o.Err == nil
}

// UploadReport contains one outcome per local path in the order the
// paths were given.
type UploadReport []UploadOutcome

// OK returns true if every upload succeeded.
func (r UploadReport) OK() bool {
	for i := range r {
		if !r[i].Success() {
			return false
		}
	}
	return true
}

// Failed returns the outcomes of all failed uploads.
func (r UploadReport) Failed() UploadReport {
	var failed UploadReport
	for i := range r {
		if !r[i].Success() {
			failed = append(failed, r[i])
		}
	}
	return failed
}

// Err joins the errors of all failed uploads.
func (r UploadReport) Err() error {
	var errs []error
	for _, outcome := range r.Failed() {
		errs = append(errs, outcome.Err)
	}
	return errors.Join(errs...)
}

// BulkUpload uploads every local path into the remote path of the
// client. Directories are uploaded recursively. A failing upload is
// recorded in its outcome and does not stop the remaining uploads. The
// returned error is only set if no connection could be established.
func (c *Client) BulkUpload(ctx context.Context, localPaths []string) (UploadReport, error) {
	if len(localPaths) == 0 {
		return UploadReport{}, nil
	}

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	report := make(UploadReport, 0, len(localPaths))
	for _, localPath := range localPaths {
		outcome := c.upload(ctx, localPath)
		report = append(report, outcome)

		if outcome.Err != nil {
			c.logger.Warn().Err(outcome.Err).Str("local_path", localPath).Msg("Failed to upload")
			continue
		}

		c.logger.Info().
			Str("local_path", localPath).
			Str("remote_path", outcome.RemotePath).
			Int("files", outcome.Files).
			Int64("bytes", outcome.Bytes).
			Dur("duration", outcome.Duration).
			Msg("Uploaded")
	}

	return report, nil
}

// upload transfers a single file or directory.
func (c *Client) upload(ctx context.Context, localPath string) UploadOutcome {
	remotePath := path.Join(c.remotePath, filepath.Base(localPath))
	outcome := UploadOutcome{LocalPath: localPath, RemotePath: remotePath}
	start := time.Now()

	if c.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.TransferTimeout)
		defer cancel()
	}

	info, err := os.Stat(localPath)
	if err != nil {
		outcome.Err = &TransferError{Op: OpUpload, LocalPath: localPath, RemotePath: remotePath, Err: err}
		return outcome
	}

	if !info.IsDir() {
		outcome.Bytes, err = c.uploadFile(ctx, localPath, remotePath)
		if err == nil {
			outcome.Files = 1
		}
	} else {
		err = filepath.WalkDir(localPath, func(current string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(localPath, current)
			if err != nil {
				return err
			}
			target := path.Join(remotePath, filepath.ToSlash(rel))

			if entry.IsDir() {
				return c.channel.MkdirAll(target)
			}
			if !entry.Type().IsRegular() {
				return nil
			}

			n, err := c.uploadFile(ctx, current, target)
			if err != nil {
				return err
			}
			outcome.Files++
			outcome.Bytes += n
			return nil
		})
	}

	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Err = &TransferError{Op: OpUpload, LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	return outcome
}

func (c *Client) uploadFile(ctx context.Context, localPath string, remotePath string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return c.channel.Upload(ctx, remotePath, file)
}

// DownloadFile downloads a single remote file into the local path of
// the client and returns the path of the local file. A relative remote
// path is resolved against the remote path of the client. The local file
// is only replaced once the download is complete.
func (c *Client) DownloadFile(ctx context.Context, remoteFile string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	remotePath := remoteFile
	if !path.IsAbs(remotePath) && c.remotePath != "" {
		remotePath = path.Join(c.remotePath, remotePath)
	}
	localPath := filepath.Join(c.LocalPath, path.Base(remotePath))

	if c.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.TransferTimeout)
		defer cancel()
	}

	start := time.Now()
	n, err := c.download(ctx, remotePath, localPath)
	if err != nil {
		err = &TransferError{Op: OpDownload, LocalPath: localPath, RemotePath: remotePath, Err: err}
		c.logger.Error().Err(err).Str("remote_path", remotePath).Msg("Failed to download")
		return "", err
	}

	c.logger.Info().
		Str("remote_path", remotePath).
		Str("local_path", localPath).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Downloaded")

	return localPath, nil
}

func (c *Client) download(ctx context.Context, remotePath string, localPath string) (int64, error) {
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := c.channel.Download(ctx, remotePath, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}

	return n, os.Rename(tmp.Name(), localPath)
}
