package rembes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Field names a record field that can be edited.
type Field int

const (
	FieldNote Field = iota + 1
	FieldAmount
)

func (f Field) String() string {
	switch f {
	case FieldNote:
		return "note"
	case FieldAmount:
		return "amount"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// ParseField maps "note" or "amount" to a Field.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "note":
		return FieldNote, nil
	case "amount":
		return FieldAmount, nil
	default:
		return 0, &ValidationError{Field: "field", Reason: fmt.Sprintf("unknown field %q", s)}
	}
}

// Selection addresses one record by its 1-based position in a listing.
// When Key is set, the record found at Index must still carry that key.
type Selection struct {
	Category string
	Period   Period
	Index    int
	Key      string
}

// DeleteResult describes a completed delete.
// Existed is false when the object was already gone; that still counts as success.
type DeleteResult struct {
	Record  Record
	Existed bool
}

// EditResult describes a completed edit.
type EditResult struct {
	Old Record
	New Record
}

// Repository provides category- and period-scoped record operations on top
// of a Vault. Records have no storage besides their keys.
type Repository struct {
	vault     Vault
	staging   StagingArea
	encryptor Encryptor
	codec     Codec
	logger    Logger
	clock     Clock
}

// NewRepository creates a Repository. encryptor may be nil, in which case
// blobs are stored as received.
func NewRepository(vault Vault, staging StagingArea, encryptor Encryptor, codec Codec, logger Logger, clock Clock) *Repository {
	return &Repository{
		vault:     vault,
		staging:   staging,
		encryptor: encryptor,
		codec:     codec,
		logger:    logger,
		clock:     clock,
	}
}

// CurrentPeriod returns the fiscal period for the repository clock's now.
func (r *Repository) CurrentPeriod() Period {
	return PeriodOf(r.clock.Now())
}

// Ping checks that the vault is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.vault.ValidateSetup(ctx); err != nil {
		return storeErr("validate", "", err)
	}
	return nil
}

// ListRecords returns the decodable records of one category and period,
// oldest first. The order is the one users address records by, so it
// must be repeatable: ties on creation time fall back to the key.
func (r *Repository) ListRecords(ctx context.Context, category string, period Period) ([]Record, error) {
	prefix := ScopePrefix(category, period)
	objects, err := r.vault.List(ctx, prefix)
	if err != nil {
		return nil, storeErr("list", prefix, err)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		if !objects[i].CreatedAt.Equal(objects[j].CreatedAt) {
			return objects[i].CreatedAt.Before(objects[j].CreatedAt)
		}
		return objects[i].Name < objects[j].Name
	})

	records := make([]Record, 0, len(objects))
	for _, obj := range objects {
		rec, err := r.codec.Decode(obj.Name)
		if err != nil {
			r.logger.Warn("skipping undecodable key", "prefix", prefix, "key", obj.Name, "error", err)
			continue
		}
		rec.Category = category
		rec.Period = period
		records = append(records, rec)
	}
	return records, nil
}

// TotalFor sums the amounts of every record in one category and period.
func (r *Repository) TotalFor(ctx context.Context, category string, period Period) (int64, error) {
	records, err := r.ListRecords(ctx, category, period)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, rec := range records {
		total += rec.Amount
	}
	return total, nil
}

// Create stores a new record in the current period. blob is the receipt
// image (or a generated placeholder); it is staged locally first so its
// size is known, and encrypted on the way in if an encryptor is configured.
func (r *Repository) Create(ctx context.Context, category, note string, amount int64, blob io.Reader) (Record, error) {
	if category == "" {
		return Record{}, &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if strings.TrimSpace(note) == "" {
		return Record{}, &ValidationError{Field: "note", Reason: "must not be empty"}
	}

	now := r.clock.Now()
	period := PeriodOf(now)
	key, err := r.codec.Encode(now, note, amount)
	if err != nil {
		return Record{}, err
	}
	rec, err := r.codec.Decode(key)
	if err != nil {
		return Record{}, fmt.Errorf("re-reading new key: %w", err)
	}
	rec.Category = category
	rec.Period = period

	staged, err := r.stageUpload(BindingFor(rec), blob)
	if err != nil {
		return Record{}, fmt.Errorf("staging blob: %w", err)
	}
	defer r.release(staged)

	if err := r.putStaged(ctx, rec.Path(), staged); err != nil {
		return Record{}, err
	}

	r.logger.Info("record created", "path", rec.Path(), "amount", amount, "size", staged.Size)
	return rec, nil
}

// DeleteAt removes the record at a 1-based position of the current listing.
// An index past the end returns ErrIndexOutOfRange without touching the store.
func (r *Repository) DeleteAt(ctx context.Context, sel Selection) (DeleteResult, error) {
	rec, err := r.resolve(ctx, sel)
	if err != nil {
		return DeleteResult{}, err
	}

	existed, err := r.vault.Delete(ctx, rec.Path())
	if err != nil {
		return DeleteResult{}, storeErr("delete", rec.Path(), err)
	}

	if existed {
		r.logger.Info("record deleted", "path", rec.Path())
	} else {
		r.logger.Warn("record already absent on delete", "path", rec.Path())
	}
	return DeleteResult{Record: rec, Existed: existed}, nil
}

// EditAt changes the note or amount of the record at a 1-based position.
//
// The store cannot rename, so an edit downloads the blob, deletes the old
// key and uploads the blob under the new key. The new key is computed
// before anything destructive happens. If the upload fails after the
// delete, the record is gone from the store and a *LostRecordError is
// returned; the downloaded copy is kept in the staging area for recovery.
func (r *Repository) EditAt(ctx context.Context, sel Selection, field Field, value string) (EditResult, error) {
	note, amount, err := r.validateEdit(field, value)
	if err != nil {
		return EditResult{}, err
	}

	old, err := r.resolve(ctx, sel)
	if err != nil {
		return EditResult{}, err
	}

	switch field {
	case FieldNote:
		amount = old.Amount
	case FieldAmount:
		note = old.Note
	}

	newKey, err := r.codec.Encode(old.CreatedAt, note, amount)
	if err != nil {
		return EditResult{}, err
	}
	if newKey == old.Key {
		return EditResult{Old: old, New: old}, ErrNoChange
	}
	updated, err := r.codec.Decode(newKey)
	if err != nil {
		return EditResult{}, fmt.Errorf("re-reading new key: %w", err)
	}
	updated.Category = old.Category
	updated.Period = old.Period

	staged, err := r.stageDownload(ctx, old.Path())
	if err != nil {
		return EditResult{}, err
	}
	keep := false
	defer func() {
		if !keep {
			r.release(staged)
		}
	}()

	existed, err := r.vault.Delete(ctx, old.Path())
	if err != nil {
		return EditResult{}, storeErr("delete", old.Path(), err)
	}
	if !existed {
		r.logger.Warn("record vanished during edit, uploading replacement anyway", "path", old.Path())
	}

	if err := r.putStaged(ctx, updated.Path(), staged); err != nil {
		keep = true
		lost := &LostRecordError{
			OldPath:  old.Path(),
			NewPath:  updated.Path(),
			Recovery: r.staging.Location(staged),
			Err:      err,
		}
		r.logger.Error("record lost during edit", "old", lost.OldPath, "new", lost.NewPath, "recovery", lost.Recovery, "error", err)
		return EditResult{}, lost
	}

	r.logger.Info("record edited", "old", old.Path(), "new", updated.Path(), "field", field.String())
	return EditResult{Old: old, New: updated}, nil
}

// Download writes the blob of the record at a 1-based position to w.
// Sealed receipts are opened with opener; a nil opener is an error for them.
func (r *Repository) Download(ctx context.Context, sel Selection, w io.Writer, opener ReceiptOpener) (Record, error) {
	rec, err := r.resolve(ctx, sel)
	if err != nil {
		return Record{}, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(r.vault.Get(ctx, rec.Path(), pw))
	}()
	defer pr.Close()

	br := bufio.NewReader(pr)
	header, err := br.Peek(64)
	if err != nil && !errors.Is(err, io.EOF) {
		return Record{}, storeErr("get", rec.Path(), err)
	}

	if r.encryptor != nil && r.encryptor.IsSealed(header) {
		if opener == nil {
			return Record{}, fmt.Errorf("receipt %s is sealed: unlock the private key first", rec.Path())
		}
		if err := opener.Open(BindingFor(rec), br, w); err != nil {
			return Record{}, fmt.Errorf("opening %s: %w", rec.Path(), err)
		}
		return rec, nil
	}

	if _, err := io.Copy(w, br); err != nil {
		return Record{}, storeErr("get", rec.Path(), err)
	}
	return rec, nil
}

// Reupload puts a local copy back under an explicit category, period and
// key, e.g. the staged copy named by a LostRecordError. The key must decode.
func (r *Repository) Reupload(ctx context.Context, category string, period Period, key string, blob io.Reader) (Record, error) {
	rec, err := r.codec.Decode(key)
	if err != nil {
		return Record{}, err
	}
	rec.Category = category
	rec.Period = period

	staged, err := r.staging.Stage(blob)
	if err != nil {
		return Record{}, fmt.Errorf("staging blob: %w", err)
	}
	defer r.release(staged)

	if err := r.putStaged(ctx, rec.Path(), staged); err != nil {
		return Record{}, err
	}
	r.logger.Info("record re-uploaded", "path", rec.Path())
	return rec, nil
}

// resolve finds the record a selection points at in a fresh listing.
func (r *Repository) resolve(ctx context.Context, sel Selection) (Record, error) {
	records, err := r.ListRecords(ctx, sel.Category, sel.Period)
	if err != nil {
		return Record{}, err
	}
	if sel.Index < 1 || sel.Index > len(records) {
		return Record{}, fmt.Errorf("%w: %d not in 1..%d", ErrIndexOutOfRange, sel.Index, len(records))
	}
	rec := records[sel.Index-1]
	if sel.Key != "" && rec.Key != sel.Key {
		return Record{}, fmt.Errorf("%w: position %d is now %s, was %s", ErrStaleSelection, sel.Index, rec.Key, sel.Key)
	}
	return rec, nil
}

func (r *Repository) validateEdit(field Field, value string) (string, int64, error) {
	value = strings.TrimSpace(value)
	switch field {
	case FieldNote:
		if value == "" {
			return "", 0, &ValidationError{Field: "note", Reason: "must not be empty"}
		}
		return SanitizeNote(value), 0, nil
	case FieldAmount:
		amount, err := ParseAmount(value)
		if err != nil {
			return "", 0, &ValidationError{Field: "amount", Reason: err.Error()}
		}
		return "", amount, nil
	default:
		return "", 0, &ValidationError{Field: "field", Reason: fmt.Sprintf("cannot edit %s", field)}
	}
}

// stageUpload copies blob into the staging area, sealing it for b when an
// encryptor is configured.
func (r *Repository) stageUpload(b ReceiptBinding, blob io.Reader) (*StagedBlob, error) {
	if r.encryptor == nil {
		return r.staging.Stage(blob)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(r.encryptor.Seal(b, blob, pw))
	}()
	defer pr.Close()
	return r.staging.Stage(pr)
}

// stageDownload copies the object at path into the staging area as-is.
func (r *Repository) stageDownload(ctx context.Context, path string) (*StagedBlob, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(r.vault.Get(ctx, path, pw))
	}()
	defer pr.Close()

	staged, err := r.staging.Stage(pr)
	if err != nil {
		return nil, storeErr("get", path, err)
	}
	return staged, nil
}

func (r *Repository) putStaged(ctx context.Context, path string, staged *StagedBlob) error {
	rc, err := r.staging.Open(staged)
	if err != nil {
		return fmt.Errorf("opening staged blob: %w", err)
	}
	defer rc.Close()

	if err := r.vault.Put(ctx, path, rc, staged.Size); err != nil {
		return storeErr("put", path, err)
	}
	return nil
}

func (r *Repository) release(staged *StagedBlob) {
	if err := r.staging.Release(staged); err != nil {
		r.logger.Warn("releasing staged blob", "id", staged.ID, "error", err)
	}
}
