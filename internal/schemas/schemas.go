// File: internal/schemas/schemas.go
package schemas

import (
	"fmt"
	"strconv"
	"strings"
)

// PopupStatus classifies the text of a post-submission popup.
type PopupStatus string

const (
	StatusSuccess PopupStatus = "success"
	StatusError   PopupStatus = "error"
	StatusUnknown PopupStatus = "unknown"
)

const (
	// MinClicks and MaxClicks bound the repeat count of a code command.
	MinClicks = 1
	MaxClicks = 50

	// MinCodeLen and MaxCodeLen bound the order code length after trimming.
	MinCodeLen = 4
	MaxCodeLen = 32
)

// Account holds the credentials for a single site account.
// Instances are immutable once validated.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the account fields. The email check is deliberately loose:
// the target site accepts anything with an "@", so we do too.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("account email must not be empty")
	}
	if !strings.Contains(a.Email, "@") {
		return fmt.Errorf("account email %q is missing '@'", a.Email)
	}
	if a.Password == "" {
		return fmt.Errorf("account %q has an empty password", a.Email)
	}
	return nil
}

// NewAccount trims and validates a credential pair.
func NewAccount(email, password string) (Account, error) {
	acc := Account{Email: strings.TrimSpace(email), Password: password}
	if err := acc.Validate(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// CodeCommand is a validated submission command: submit Code, Clicks times.
type CodeCommand struct {
	Clicks int
	Code   string
}

// NewCodeCommand validates the pair and trims the code.
func NewCodeCommand(clicks int, code string) (CodeCommand, error) {
	code = strings.TrimSpace(code)
	if clicks < MinClicks || clicks > MaxClicks {
		return CodeCommand{}, fmt.Errorf("clicks must be between %d and %d, got %d", MinClicks, MaxClicks, clicks)
	}
	if len(code) < MinCodeLen || len(code) > MaxCodeLen {
		return CodeCommand{}, fmt.Errorf("code length must be between %d and %d characters, got %d", MinCodeLen, MaxCodeLen, len(code))
	}
	return CodeCommand{Clicks: clicks, Code: code}, nil
}

// ParseCodeCommand parses the chat syntax "<N>f <code>", e.g. "2f j2f4ffjb".
// The trailing 'f' on the count is required.
func ParseCodeCommand(args string) (CodeCommand, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return CodeCommand{}, fmt.Errorf("expected \"<N>f <code>\", got %q", args)
	}

	clicksArg := strings.ToLower(fields[0])
	if !strings.HasSuffix(clicksArg, "f") {
		return CodeCommand{}, fmt.Errorf("repeat count %q must end with 'f'", fields[0])
	}
	clicks, err := strconv.Atoi(strings.TrimSuffix(clicksArg, "f"))
	if err != nil {
		return CodeCommand{}, fmt.Errorf("repeat count %q is not a number", fields[0])
	}

	return NewCodeCommand(clicks, fields[1])
}

// SubmitResult records the outcome of a single code submission attempt.
type SubmitResult struct {
	Success    bool        `json:"success"`
	PopupText  string      `json:"popup_text"`
	Status     PopupStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
}

// AccountResult aggregates every submission attempt made for one account.
type AccountResult struct {
	Email             string         `json:"email"`
	Success           bool           `json:"success"`
	TotalSubmits      int            `json:"total_submits"`
	SuccessfulSubmits int            `json:"successful_submits"`
	FailedSubmits     int            `json:"failed_submits"`
	DurationSeconds   float64        `json:"duration_seconds"`
	Results           []SubmitResult `json:"results,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// Partial reports whether the account failed overall but still landed at
// least one successful submission. The reporting layer renders these
// differently from plain failures.
func (r AccountResult) Partial() bool {
	return !r.Success && r.SuccessfulSubmits > 0
}

// BuildAccountResult derives an AccountResult from collected submission
// outcomes. An account counts as a success only when all of the following
// hold: no fatal error, at least one attempt, the attempt count matches the
// requested count, and every attempt succeeded.
func BuildAccountResult(email string, results []SubmitResult, targetSubmits int, durationSeconds float64, fatalErr string) AccountResult {
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	strictSuccess := fatalErr == "" &&
		len(results) > 0 &&
		len(results) == targetSubmits &&
		successful == targetSubmits

	return AccountResult{
		Email:             email,
		Success:           strictSuccess,
		TotalSubmits:      len(results),
		SuccessfulSubmits: successful,
		FailedSubmits:     len(results) - successful,
		DurationSeconds:   durationSeconds,
		Results:           results,
		Error:             fatalErr,
	}
}

// RunReport is the final result of one fleet-wide run.
type RunReport struct {
	RunID                string          `json:"run_id"`
	TotalAccounts        int             `json:"total_accounts"`
	ProcessedAccounts    int             `json:"processed_accounts"`
	SuccessfulAccounts   int             `json:"successful_accounts"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	TimedOut             bool            `json:"timed_out"`
	AccountResults       []AccountResult `json:"account_results,omitempty"`
}
