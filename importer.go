package accounts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ImportOutcome classifies what happened (or would happen) to one row
type ImportOutcome string

const (
	// OutcomeCreated a new account was (or would be) created
	OutcomeCreated ImportOutcome = "created"
	// OutcomeUpdated an existing account was (or would be) changed
	OutcomeUpdated ImportOutcome = "updated"
	// OutcomeSkipped nothing to do for this row
	OutcomeSkipped ImportOutcome = "skipped"
	// OutcomeInvalid the row had a malformed email and was excluded
	OutcomeInvalid ImportOutcome = "invalid"
)

// ImportRowResult reports one row of the run, 1-indexed in input order
type ImportRowResult struct {
	Row     int
	Email   string
	Outcome ImportOutcome
	Reason  string
}

// ImportReport is the end-of-run tally. It is always produced, dry run or
// not, regardless of how many rows were invalid or skipped.
type ImportReport struct {
	Rows    int
	Created int
	Updated int
	Skipped int
	Invalid int
	DryRun  bool
	Results []ImportRowResult
}

func (r *ImportReport) record(res ImportRowResult) {
	r.Rows++
	r.Results = append(r.Results, res)

	switch res.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeInvalid:
		r.Invalid++
	default:
		r.Skipped++
	}
}

// ImportConfig drives one import run
type ImportConfig struct {
	CSVPath string
	// DefaultPassword applies to rows without their own password value. An
	// empty default leaves such rows without a usable credential.
	DefaultPassword string
	// Update applies first/last name and password changes to existing
	// accounts instead of skipping them.
	Update bool
	// DryRun classifies every row without writing anything.
	DryRun bool
}

// Importer performs idempotent create-or-update of accounts from a CSV
// source. The file needs an email column; first_name, last_name, and
// password columns are optional and anything else is ignored. Imported
// accounts are always students.
type Importer struct {
	lifecycle *Lifecycle
	repo      RepositoryManager
	logger    Logger
}

// NewImporter will create a new Importer
func NewImporter(lifecycle *Lifecycle, repo RepositoryManager) *Importer {
	return &Importer{
		lifecycle: lifecycle,
		repo:      repo,
		logger:    defLogger{},
	}
}

func (im *Importer) WithLogger(logger Logger) *Importer {
	if logger != nil {
		im.logger = logger
	}
	return im
}

// Run executes the import: one pass to validate the header, one pass over
// the rows. Configuration problems (missing file, unreadable file, missing
// email column) abort the run; row level problems only mark their row.
func (im *Importer) Run(ctx context.Context, cfg ImportConfig, out io.Writer) (*ImportReport, error) {
	if out == nil {
		out = io.Discard
	}

	header, err := im.validateHeader(cfg.CSVPath)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "== user import starting ==\n")
	fmt.Fprintf(out, "file: %s\n", cfg.CSVPath)
	fmt.Fprintf(out, "headers: %s\n", strings.Join(headerNames(header), ", "))

	maskedDefault := "none"
	if cfg.DefaultPassword != "" {
		maskedDefault = "***"
	}
	fmt.Fprintf(out, "options: default_password=%s update=%v dry_run=%v\n", maskedDefault, cfg.Update, cfg.DryRun)

	report := &ImportReport{DryRun: cfg.DryRun}

	if err := im.processRows(ctx, cfg, header, report, out); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "rows=%d created=%d updated=%d skipped=%d invalid_email=%d dry_run=%v\n",
		report.Rows, report.Created, report.Updated, report.Skipped, report.Invalid, report.DryRun)

	return report, nil
}

// validateHeader is the first pass: it only reads the header row and
// confirms the mandatory email column is present.
func (im *Importer) validateHeader(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not open CSV file").
			WithMetadata(map[string]any{"path": path})
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not read CSV header").
			WithMetadata(map[string]any{"path": path})
	}

	header := make(map[string]int, len(record))
	for i, name := range record {
		header[strings.TrimSpace(name)] = i
	}

	if _, ok := header["email"]; !ok {
		return nil, goerrors.New("CSV must include an 'email' column", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"path": path})
	}

	return header, nil
}

// processRows is the second pass: classify and, unless dry running, apply
// every row in input order.
func (im *Importer) processRows(ctx context.Context, cfg ImportConfig, header map[string]int, report *ImportReport, out io.Writer) error {
	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not open CSV file").
			WithMetadata(map[string]any{"path": cfg.CSVPath})
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// skip the header row
	if _, err := reader.Read(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not read CSV header")
	}

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not read CSV row").
				WithMetadata(map[string]any{"row": row + 1})
		}

		row++

		result, err := im.processRow(ctx, cfg, header, row, record)
		if err != nil {
			return err
		}

		report.record(result)
		im.reportRow(out, cfg, result)
	}

	return nil
}

func (im *Importer) processRow(ctx context.Context, cfg ImportConfig, header map[string]int, row int, record []string) (ImportRowResult, error) {
	field := func(name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	rawEmail := field("email")
	email := strings.ToLower(rawEmail)

	result := ImportRowResult{Row: row, Email: email}

	if email == "" {
		result.Outcome = OutcomeSkipped
		result.Reason = "missing email"
		return result, nil
	}

	if !isEmail(email) {
		result.Email = rawEmail
		result.Outcome = OutcomeInvalid
		result.Reason = "invalid email"
		return result, nil
	}

	firstName := field("first_name")
	lastName := field("last_name")

	// password precedence: row value, then the run wide default, then none
	chosenPassword := field("password")
	if chosenPassword == "" {
		chosenPassword = cfg.DefaultPassword
	}

	existing, err := im.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account").
				WithMetadata(map[string]any{"row": row, "email": email})
		}
		return im.createRow(ctx, cfg, result, firstName, lastName, chosenPassword)
	}

	if !cfg.Update {
		result.Outcome = OutcomeSkipped
		result.Reason = "exists"
		return result, nil
	}

	return im.updateRow(ctx, cfg, result, existing, firstName, lastName, chosenPassword)
}

func (im *Importer) createRow(ctx context.Context, cfg ImportConfig, result ImportRowResult, firstName, lastName, password string) (ImportRowResult, error) {
	result.Outcome = OutcomeCreated

	if cfg.DryRun {
		return result, nil
	}

	_, err := im.lifecycle.Create(ctx, CreateUserInput{
		Email:     result.Email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      RoleStudent,
		Password:  password,
	})
	if err != nil {
		if IsDuplicateIdentity(err) {
			// lost a race with another writer since the lookup
			result.Outcome = OutcomeSkipped
			result.Reason = "exists"
			return result, nil
		}
		return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account").
			WithMetadata(map[string]any{"row": result.Row, "email": result.Email})
	}

	return result, nil
}

func (im *Importer) updateRow(ctx context.Context, cfg ImportConfig, result ImportRowResult, existing *User, firstName, lastName, password string) (ImportRowResult, error) {
	changed := false

	patch := &User{ID: existing.ID}
	if firstName != "" && existing.FirstName != firstName {
		patch.FirstName = firstName
		changed = true
	}
	if lastName != "" && existing.LastName != lastName {
		patch.LastName = lastName
		changed = true
	}
	// a resolved password always counts as a change: we cannot compare
	// hashes, so the original value wins a fresh reset
	if password != "" {
		changed = true
	}

	if !changed {
		result.Outcome = OutcomeSkipped
		result.Reason = "no changes"
		return result, nil
	}

	result.Outcome = OutcomeUpdated

	if cfg.DryRun {
		return result, nil
	}

	if patch.FirstName != "" || patch.LastName != "" {
		criteria := []repository.UpdateCriteria{
			repository.UpdateByID(existing.ID.String()),
			repository.UpdateSkipZeroValues(),
		}
		if _, err := im.repo.Users().Update(ctx, patch, criteria...); err != nil {
			return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account").
				WithMetadata(map[string]any{"row": result.Row, "email": result.Email})
		}
	}

	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return result, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password for row").
				WithMetadata(map[string]any{"row": result.Row})
		}
		if err := im.repo.Users().ResetPassword(ctx, existing.ID, hash); err != nil {
			return result, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset account credential").
				WithMetadata(map[string]any{"row": result.Row, "email": result.Email})
		}
	}

	return result, nil
}

func (im *Importer) reportRow(out io.Writer, cfg ImportConfig, result ImportRowResult) {
	prefix := ""
	if cfg.DryRun {
		prefix = "would "
	}

	switch result.Outcome {
	case OutcomeCreated:
		fmt.Fprintf(out, "[row %d] %screate: %s (student)\n", result.Row, prefix, result.Email)
	case OutcomeUpdated:
		fmt.Fprintf(out, "[row %d] %supdate: %s\n", result.Row, prefix, result.Email)
	case OutcomeInvalid:
		fmt.Fprintf(out, "[row %d] invalid email %q -> skip\n", result.Row, result.Email)
	default:
		fmt.Fprintf(out, "[row %d] %s -> skip: %s\n", result.Row, result.Reason, result.Email)
	}
}

func headerNames(header map[string]int) []string {
	names := make([]string, len(header))
	for name, idx := range header {
		if idx >= 0 && idx < len(names) {
			names[idx] = name
		}
	}
	return names
}
