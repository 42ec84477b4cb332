package bucket

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Scheme is the URL scheme of Cloud Storage bucket names.
	Scheme = "gs://"

	// NamePrefix prefixes generated staging bucket names.
	NamePrefix = "agent-deploy"

	// TimestampLayout is the layout of the timestamp in generated names.
	TimestampLayout = "20060102-150405"

	// ProjectPlaceholder is shown in hints when the project is unknown.
	ProjectPlaceholder = "<PROJECT>"
)

var (
	// ErrMissingProject is returned when no cloud project is configured.
	ErrMissingProject = errors.New("GOOGLE_CLOUD_PROJECT not set")

	// ErrNoBucket is returned when no bucket was specified or configured.
	ErrNoBucket = errors.New("no bucket specified")

	// ErrBucketNotFound is returned when the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket does not exist")
)

// GenerateName returns a staging bucket name of the form
// gs://agent-deploy-<project>-<YYYYMMDD-HHMMSS>.
func GenerateName(project string, now time.Time) (string, error) {
	if project == "" {
		return "", ErrMissingProject
	}

	return fmt.Sprintf("%s%s-%s-%s", Scheme, NamePrefix, project, now.Format(TimestampLayout)), nil
}

// CreateHint returns the command a user can run to create bucket manually.
func CreateHint(project, bucket string) string {
	if project == "" {
		project = ProjectPlaceholder
	}

	return fmt.Sprintf("gsutil mb -p %s %s", project, bucket)
}

// Normalize adds the gs:// scheme to bare bucket names.
func Normalize(bucket string) string {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.HasPrefix(bucket, Scheme) {
		return bucket
	}

	return Scheme + bucket
}
