// Package bucket checks for and creates the Cloud Storage bucket used to
// stage agent deployments.
//
// Storage operations are delegated to a pre-built command-line tool
// (gsutil by default) through [GSUtil], which implements [Client].
// [Manager] ties a [Client] to the deployment env file, resolving the bucket
// name from flags, the GCS_STAGING_BUCKET variable, or a generated name.
package bucket
