package engine

import (
	"errors"

	"github.com/nicklasfrahm/sshclient/pkg/rexec"
)

// Download is the outcome of downloading a single file.
type Download struct {
	RemotePath string
	LocalPath  string
	Err        error
}

// Report describes what happened during a playbook run.
type Report struct {
	Host      string
	Key       rexec.KeyStatus
	Uploads   rexec.UploadReport
	Commands  rexec.Results
	Downloads []Download
}

// OK returns true if every upload, command and download succeeded.
// Key provisioning failures do not count, as the key may have been
// authorized before.
func (r *Report) OK() bool {
	return r.Err() == nil
}

// Err joins the errors of all failed items.
func (r *Report) Err() error {
	errs := []error{r.Uploads.Err(), r.Commands.Err()}
	for _, download := range r.Downloads {
		errs = append(errs, download.Err)
	}
	return errors.Join(errs...)
}
