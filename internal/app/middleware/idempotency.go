package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/pkg/errs"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

// Fingerprinted commands describe the request a key was first used with. A
// replay under the same key with a different fingerprint is refused.
type Fingerprinted interface {
	Fingerprint() string
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	Category   string
	Digest     string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	ErrIdempotencyKeyReused = errs.Mark(errs.New("middleware: idempotency key was used for a different request"), errs.ErrValidation)
	errMissingPrototype     = errs.New("middleware: idempotent command requires result prototype")
)

// Idempotency replays the stored outcome of a command already seen under the
// same key. Transient failures are not stored so a retry can still succeed.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			digest := digestOf(cmd)
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				if rec.Digest != "" && digest != "" && rec.Digest != digest {
					return nil, ErrIdempotencyKeyReused
				}
				return replay(rec, idCmd, codec)
			}
			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{
				Key:        key,
				Digest:     digest,
				OccurredAt: time.Now().UTC(),
			}
			if err != nil {
				if errs.Transient(err) {
					return nil, err
				}
				record.Error = err.Error()
				if category := errs.CategoryOf(err); category != nil {
					record.Category = category.Error()
				}
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errs.Wrap(err, saveErr.Error())
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func digestOf(cmd commands.Command) string {
	fp, ok := cmd.(Fingerprinted)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(fp.Fingerprint()))
	return hex.EncodeToString(sum[:])
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		replayed := errs.New(rec.Error)
		if category := errs.CategoryByName(rec.Category); category != nil {
			replayed = errs.Mark(replayed, category)
		}
		return nil, replayed
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
