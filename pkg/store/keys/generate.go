package keys

import (
	"fmt"
)

// GenActionKey builds the storage key of one action.
func GenActionKey(reportID, actionID string) (string, error) {
	if err := ValidateID(reportID); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	if err := ValidateID(actionID); err != nil {
		return "", fmt.Errorf("action: %w", err)
	}
	return fmt.Sprintf(ActionKey, reportID, actionID), nil
}

// GenActionPrefix builds the prefix shared by all actions of a report.
func GenActionPrefix(reportID string) (string, error) {
	if err := ValidateID(reportID); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return fmt.Sprintf(ActionPrefix, reportID), nil
}

// GenReportMetaKey builds the key holding per-report metadata.
func GenReportMetaKey(reportID string) (string, error) {
	if err := ValidateID(reportID); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return fmt.Sprintf(ReportMeta, reportID), nil
}

// PrefixEnd returns the smallest key greater than every key with prefix,
// for use as an iterator upper bound.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
