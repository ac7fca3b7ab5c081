package deltalog

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

const (
	azureForbiddenHelp = "Your Azure identity lacks permission to read the table.\n\n" +
		"To fix this:\n" +
		"1. Ensure your Azure identity has 'Storage Blob Data Reader' role on the storage account\n" +
		"2. Verify you're using the correct identity (check with 'az account show')\n" +
		"3. If using a service principal, ensure it has the correct RBAC permissions"
	azureUnauthorizedHelp = "The Azure access token may have expired or be invalid.\n\n" +
		"To fix this:\n" +
		"1. Re-authenticate with 'az login'\n" +
		"2. If using environment variables, ensure they are set correctly\n" +
		"3. Check that your Azure credentials are valid"
	awsHelp = "The AWS credentials were rejected.\n\n" +
		"To fix this:\n" +
		"1. Check the active credentials (AWS_PROFILE, AWS_ACCESS_KEY_ID or 'aws sts get-caller-identity')\n" +
		"2. Ensure the IAM policy allows s3:ListBucket and s3:GetObject on the table prefix\n" +
		"3. Refresh expired session tokens with 'aws sso login' or your credential helper"
	gcsHelp = "The Google Cloud credentials were rejected.\n\n" +
		"To fix this:\n" +
		"1. Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS\n" +
		"2. Ensure the identity has 'Storage Object Viewer' on the bucket"
)

// provider selects the remediation text of an authentication failure.
type provider int

const (
	providerAzure provider = iota
	providerAWS
	providerGCS
)

func remediation(p provider, status int) string {
	switch p {
	case providerAzure:
		if status == http.StatusUnauthorized {
			return azureUnauthorizedHelp
		}

		return azureForbiddenHelp
	case providerAWS:
		return awsHelp
	default:
		return gcsHelp
	}
}

// isAuthStatus reports whether an HTTP status means the caller was rejected.
func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func newAuthError(p provider, location string, status int, err error) error {
	return &delta.AuthenticationError{
		Location:    location,
		StatusCode:  status,
		Remediation: remediation(p, status),
		Err:         err,
	}
}

// gcsStatus returns the HTTP status of a Google Cloud Storage API error, or 0
// when err carries none.
func gcsStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return 0
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, delta.ErrAuthentication) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, delta.ErrCorruptLog) ||
		errors.Is(err, ErrUnsupportedLocation)
}
