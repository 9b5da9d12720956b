package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrTooManyRows = errors.New("csv exceeds the row limit")

// ParseRecipients reads employee addresses from a CSV. The header row must
// contain an "Email" column (case-insensitive); other columns are ignored.
//
// maxRows caps the data rows (excluding header). A longer file is rejected
// with ErrTooManyRows rather than truncated.
func ParseRecipients(r io.Reader, maxRows int) ([]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, err
	}

	emailIdx := -1
	for i, h := range headers {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if strings.EqualFold(h, "email") {
			emailIdx = i
			break
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = 1000
	}

	emails := make([]string, 0)
	for rows := 0; ; rows++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rows == maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		if emailIdx >= len(record) {
			// skip malformed row
			continue
		}

		email := strings.TrimSpace(record[emailIdx])
		if email == "" {
			continue
		}
		emails = append(emails, email)
	}

	if len(emails) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return emails, nil
}
