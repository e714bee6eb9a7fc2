package postgres

// derefString safely dereferences a string pointer, returning empty string if nil
func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nullString maps "" to SQL NULL.
func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(values []int64) []int64 {
	if values == nil {
		return []int64{}
	}
	return values
}
