package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

// keyringChunkSize is the largest secret written as a single keyring entry.
// Windows Credential Manager rejects blobs above 2560 bytes and records
// holding a JWT access token regularly exceed that.
const keyringChunkSize = 2048

// chunkHeaderPrefix marks a head entry whose record is split across chunk entries.
const chunkHeaderPrefix = "signet-chunked:"

// KeyringStore provides OS-native secure credential storage for records.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
//
// Records larger than one entry are split into chunks stored under
// "<user>#<generation>.<index>". The head entry under user names the current
// generation and is written last, so a reader sees either the previous or
// the new record.
type KeyringStore struct {
	service   string
	user      string
	chunkSize int
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore. The service names the collection
// the record lives in and user is the account tag within it.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service:   service,
		user:      user,
		chunkSize: keyringChunkSize,
	}, nil
}

// chunkHeader describes a record split across several entries.
type chunkHeader struct {
	generation string
	count      int
}

func (h chunkHeader) String() string {
	return chunkHeaderPrefix + h.generation + ":" + strconv.Itoa(h.count)
}

func (h chunkHeader) key(user string, index int) string {
	return user + "#" + h.generation + "." + strconv.Itoa(index)
}

// parseChunkHeader reports whether head refers to chunk entries.
func parseChunkHeader(head string) (chunkHeader, bool, error) {
	rest, ok := strings.CutPrefix(head, chunkHeaderPrefix)
	if !ok {
		return chunkHeader{}, false, nil
	}
	generation, countText, ok := strings.Cut(rest, ":")
	count, err := strconv.Atoi(countText)
	if !ok || generation == "" || err != nil || count < 1 {
		return chunkHeader{}, true, fmt.Errorf("malformed chunk header %q", head)
	}
	return chunkHeader{generation: generation, count: count}, true, nil
}

// Read returns the record from the system keyring. Returns ErrNotFound if no entry exists.
func (k *KeyringStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	header, chunked, err := parseChunkHeader(head)
	if err != nil {
		return nil, fmt.Errorf("keyring entry %s/%s: %w", k.service, k.user, err)
	}
	if !chunked {
		return []byte(head), nil
	}

	var record strings.Builder
	for i := range header.count {
		chunk, err := keyring.Get(k.service, header.key(k.user, i))
		if err != nil {
			return nil, fmt.Errorf("keyring entry %s/%s: reading chunk %d of %d: %w", k.service, k.user, i+1, header.count, err)
		}
		record.WriteString(chunk)
	}
	return []byte(record.String()), nil
}

// Write persists the record to the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	previous := k.currentHeader()

	if len(data) <= k.chunkSize {
		if err := keyring.Set(k.service, k.user, string(data)); err != nil {
			return err
		}
		k.deleteChunks(previous)
		return nil
	}

	header := chunkHeader{
		generation: uuid.NewString(),
		count:      (len(data) + k.chunkSize - 1) / k.chunkSize,
	}
	for i := range header.count {
		end := min((i+1)*k.chunkSize, len(data))
		if err := keyring.Set(k.service, header.key(k.user, i), string(data[i*k.chunkSize:end])); err != nil {
			k.deleteChunks(&header)
			return fmt.Errorf("writing chunk %d of %d: %w", i+1, header.count, err)
		}
	}

	if err := keyring.Set(k.service, k.user, header.String()); err != nil {
		k.deleteChunks(&header)
		return err
	}
	k.deleteChunks(previous)
	return nil
}

// Delete removes the keyring entry and any chunks it refers to.
func (k *KeyringStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	previous := k.currentHeader()
	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	k.deleteChunks(previous)
	return nil
}

// currentHeader returns the chunk header of the stored record, or nil if the
// record is stored in a single entry or absent.
func (k *KeyringStore) currentHeader() *chunkHeader {
	head, err := keyring.Get(k.service, k.user)
	if err != nil {
		return nil
	}
	header, chunked, err := parseChunkHeader(head)
	if !chunked || err != nil {
		return nil
	}
	return &header
}

// deleteChunks removes the chunk entries of header. Missing chunks are ignored.
func (k *KeyringStore) deleteChunks(header *chunkHeader) {
	if header == nil {
		return
	}
	for i := range header.count {
		_ = keyring.Delete(k.service, header.key(k.user, i))
	}
}
