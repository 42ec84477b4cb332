package authtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/dandye/mcp-security/pkg/chronicle"
	"github.com/dandye/mcp-security/pkg/gcpauth"
)

// Quick runs the two-step check: Google authentication, then Chronicle
// client construction. On failure it prints troubleshooting steps and
// returns an error wrapping [ErrTestsFailed].
func (t *Tester) Quick(ctx context.Context) error {
	rule := strings.Repeat("=", 50)

	t.out.Header("Testing Chronicle Authentication")
	t.out.Println(rule)

	t.out.Println()
	t.out.Header("1. Testing Google Authentication...")

	authOK := t.quickGoogleAuth(ctx)

	t.out.Println()
	t.out.Header("2. Testing Chronicle Client...")

	chronicleOK := t.quickChronicle(ctx)

	t.out.Println()
	t.out.Println(rule)

	if authOK && chronicleOK {
		t.out.Success("All tests passed! Service account authentication is working.")

		return nil
	}

	t.out.Failure("Some tests failed. Check the errors above.")
	t.out.Println()
	t.out.Println("Troubleshooting:")
	t.out.Println("1. Ensure you're using service account impersonation:")
	t.out.Hint("   %s", gcpauth.ImpersonationLoginHint("chronicle-mcp-sa@$GOOGLE_CLOUD_PROJECT.iam.gserviceaccount.com"))
	t.out.Println("2. Set required environment variables:")
	t.out.Hint("   export %s=your-project-id", chronicle.EnvProjectID)
	t.out.Hint("   export %s=your-customer-id", chronicle.EnvCustomerID)
	t.out.Hint("   export %s=%s", chronicle.EnvRegion, chronicle.DefaultRegion)

	return fmt.Errorf("%w: google auth ok=%t, chronicle client ok=%t", ErrTestsFailed, authOK, chronicleOK)
}

func (t *Tester) quickGoogleAuth(ctx context.Context) bool {
	info, err := t.resolver.Resolve(ctx)
	if err != nil {
		t.out.Failure("Google auth failed: %v", err)

		return false
	}

	sa := info.ServiceAccount
	if sa == "" {
		sa = "N/A"
	}

	t.out.Success("Google auth successful")
	t.out.Detail("Project: %s", orNone(info.ProjectID))
	t.out.Detail("Service account: %s", sa)
	t.out.Detail("Token valid: %t", info.TokenValid)

	return true
}

func (t *Tester) quickChronicle(ctx context.Context) bool {
	client, err := t.newClient(ctx)
	if err != nil {
		t.out.Failure("Chronicle client failed: %v", err)

		return false
	}

	t.out.Success("SecOps client created successfully")

	cfg := chronicle.ConfigFromEnv()
	if cfg.ProjectID == "" || cfg.CustomerID == "" {
		t.out.Failure("Missing required environment variables:")
		t.out.Detail("%s: %s", chronicle.EnvProjectID, orNone(cfg.ProjectID))
		t.out.Detail("%s: %s", chronicle.EnvCustomerID, orNone(cfg.CustomerID))

		return false
	}

	_, err = client.Chronicle(cfg.CustomerID, cfg.ProjectID, cfg.Region)
	if err != nil {
		t.out.Failure("Chronicle client failed: %v", err)

		return false
	}

	t.out.Success("Chronicle client initialized successfully")
	t.out.Detail("Customer ID: %s", cfg.CustomerID)
	t.out.Detail("Project ID: %s", cfg.ProjectID)
	t.out.Detail("Region: %s", cfg.Region)

	return true
}
