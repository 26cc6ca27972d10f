package finding

import "time"

// DefaultFindings returns the demo finding set. Every call returns fresh
// values.
func DefaultFindings() []Finding {
	return []Finding{
		{
			ID:         "F-001",
			Title:      `S3 Bucket "finance-reports" is public`,
			Resource:   "arn:aws:s3:::finance-reports",
			Provider:   ProviderAWS,
			Severity:   SeverityCritical,
			Status:     StatusOpen,
			Frameworks: []string{"CIS 1.2", "NIST AC-3"},
			Impact:     "Critical data leakage path detected. An unauthenticated attacker could traverse and exfiltrate PII data. This violates corporate governance policy P-91.",
			Fix:        `aws s3api put-public-access-block --bucket finance-reports --public-access-block-configuration "BlockPublicAcls=true,IgnorePublicAcls=true,BlockPublicPolicy=true,RestrictPublicBuckets=true"`,
			DetectedAt: time.Date(2024, 5, 20, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:         "F-002",
			Title:      `Azure Disk "vm-disk-01" is unencrypted`,
			Resource:   "/subscriptions/sub-123/disks/vm-disk-01",
			Provider:   ProviderAzure,
			Severity:   SeverityHigh,
			Status:     StatusOpen,
			Frameworks: []string{"CIS 2.1"},
			Impact:     "Physical data compromise risk. Regulatory frameworks (GDPR/HIPAA) require encryption at rest for all production volumes.",
			Fix:        "az disk update --name vm-disk-01 --resource-group prod-rg --encryption-type EncryptionAtRestWithCustomerKey",
			DetectedAt: time.Date(2024, 5, 20, 11, 15, 0, 0, time.UTC),
		},
		{
			ID:         "F-003",
			Title:      "GCP Service Account has Overly Permissive Roles",
			Resource:   "deployer@project-x.iam.gserviceaccount.com",
			Provider:   ProviderGCP,
			Severity:   SeverityMedium,
			Status:     StatusOpen,
			Frameworks: []string{"CIS 1.6", "Least Privilege"},
			Impact:     `Lateral movement risk. This account has "Project Owner" permissions but only requires "GCR Reader". Compromise leads to full environment takeover.`,
			Fix:        `gcloud projects remove-iam-policy-binding project-x --member="serviceAccount:deployer@project-x.iam.gserviceaccount.com" --role="roles/owner"`,
			DetectedAt: time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC),
		},
	}
}

// DefaultConnections returns every provider in the disconnected state.
func DefaultConnections() []Connection {
	out := make([]Connection, 0, 3)
	for _, p := range Providers() {
		out = append(out, Connection{Provider: p, Status: ConnectionDisconnected})
	}
	return out
}
