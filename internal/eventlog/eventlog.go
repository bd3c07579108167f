// Package eventlog implements the append-only, git-backed event stream
// (spec §2 C13): one JSON line per event in a gitstore repository, with
// referenced binary assets copied alongside and, optionally, mirrored
// to S3. It shares the transaction engine (C5) and filesystem facade
// (C3) with runtimestate but is its own repository and its own
// document shape.
//
// Grounded on the teacher's JSON-document persistence idiom
// (internal/cron/service.go's load/save pair) for the append path, and
// on internal/gitstore for atomicity; the event stream itself has no
// direct teacher analogue, since the teacher's cron store overwrites a
// single document rather than appending to one.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
	"github.com/ottojung/volodyslav-scheduler/internal/gitstore"
)

const (
	eventsFileName = "events.jsonl"
	assetsDirName  = "assets"
)

// Entry is one record appended to the event stream.
type Entry struct {
	ID        string
	Timestamp clock.DateTime
	Kind      string
	Message   string
	// Assets holds absolute paths, on local disk outside the
	// repository, of binary files to copy alongside this entry.
	Assets []string
}

type wireEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Assets    []string `json:"assets,omitempty"`
}

// Capabilities bundles the gitstore collaborators plus an optional S3
// mirror (spec §2 C13: "optional off-site mirror").
type Capabilities struct {
	Store  gitstore.Capabilities
	Mirror *S3Mirror
}

// Append commits entry to the event log at workingPath, copying any
// referenced assets into the work-tree, then best-effort mirrors those
// assets to S3 if caps.Mirror is configured. A mirror failure is logged
// but never fails the append itself (spec: the git repository is the
// source of truth, S3 is a convenience copy).
func Append(ctx context.Context, caps Capabilities, workingPath string, initial gitstore.InitialState, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := gitstore.TransactionWithRetry(ctx, caps.Store, workingPath, initial, func(ctx context.Context, store *gitstore.Store) (struct{}, error) {
		if err := appendLine(caps, store, entry); err != nil {
			return struct{}{}, err
		}
		if err := copyAssets(caps, store, entry); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, store.Commit(ctx, fmt.Sprintf("event: %s %s", entry.Kind, entry.ID))
	})
	if err != nil {
		return err
	}

	mirrorAssets(ctx, caps, entry)
	return nil
}

func appendLine(caps Capabilities, store *gitstore.Store, entry Entry) error {
	wire := wireEntry{
		ID:        entry.ID,
		Timestamp: entry.Timestamp.ToISOString(),
		Kind:      entry.Kind,
		Message:   entry.Message,
		Assets:    assetBaseNames(entry.Assets),
	}
	line, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("eventlog: marshal entry: %w", err)
	}

	path := filepath.Join(store.GetWorkTree(), eventsFileName)
	var existing string
	if f, openErr := caps.Store.FS.OpenExisting(path); openErr == nil {
		existing, err = caps.Store.FS.ReadText(f)
		if err != nil {
			return fmt.Errorf("eventlog: read existing log: %w", err)
		}
	}

	return caps.Store.FS.WriteText(path, existing+string(line)+"\n")
}

func copyAssets(caps Capabilities, store *gitstore.Store, entry Entry) error {
	for _, src := range entry.Assets {
		f, err := caps.Store.FS.OpenExisting(src)
		if err != nil {
			return fmt.Errorf("eventlog: asset %q: %w", src, err)
		}
		dest := filepath.Join(store.GetWorkTree(), assetsDirName, entry.ID, filepath.Base(src))
		if err := caps.Store.FS.CopyFile(f, dest); err != nil {
			return fmt.Errorf("eventlog: copy asset %q: %w", src, err)
		}
	}
	return nil
}

func mirrorAssets(ctx context.Context, caps Capabilities, entry Entry) {
	if caps.Mirror == nil {
		return
	}
	for _, src := range entry.Assets {
		key := entry.ID + "/" + filepath.Base(src)
		// os.Open, not fsx.ReadText: the mirror needs a binary-safe
		// io.Reader to stream, and ReadText assumes UTF-8 text.
		file, err := os.Open(src)
		if err != nil {
			caps.Mirror.log.Warn("eventlog: failed to open asset for S3 mirror", "path", src, "error", err.Error())
			continue
		}
		caps.Mirror.Upload(ctx, key, file)
		file.Close()
	}
}

func assetBaseNames(assets []string) []string {
	if len(assets) == 0 {
		return nil
	}
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = filepath.Base(a)
	}
	return out
}
