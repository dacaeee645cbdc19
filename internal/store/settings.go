package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
)

const settingsPrefix = "settings:"

// Setting keys.
const (
	KeyJPDBAPIKey     = "jpdb_api_key"
	KeyMiningDeckID   = "mining_deck_id"
	KeySubtitleColors = "subtitle_colors"
	KeyCustomCSS      = "custom_css"
	KeyKeybinds       = "keybinds"
	KeyTooltipButtons = "tooltip_buttons"
	KeySelectedDecks  = "selected_decks"
)

// Keys lists every setting the store accepts.
var Keys = []string{
	KeyJPDBAPIKey, KeyMiningDeckID, KeySubtitleColors, KeyCustomCSS,
	KeyKeybinds, KeyTooltipButtons, KeySelectedDecks,
}

// KnownKey reports whether key is a setting the store accepts.
func KnownKey(key string) bool {
	return slices.Contains(Keys, key)
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !KnownKey(key) {
		return "", ErrUnknownKey
	}

	k := settingKey(key)

	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. An empty value deletes the setting.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return s.Delete(ctx, key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !KnownKey(key) {
		return ErrUnknownKey
	}

	k := settingKey(key)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(value))
	}); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	s.logger.Debug("setting updated", "key", key)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !KnownKey(key) {
		return ErrUnknownKey
	}

	k := settingKey(key)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	}); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	s.logger.Debug("setting deleted", "key", key)
	return nil
}

// All returns every stored setting.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(settingsPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), settingsPrefix)
			if err := item.Value(func(val []byte) error {
				out[key] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

// Change describes a committed write to a setting.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// OnChange calls fn for every committed change to key until ctx is done.
// The watch runs in its own goroutine. Writes that commit before Badger has
// registered the subscription are not reported.
func (s *Store) OnChange(ctx context.Context, key string, fn func(Change)) error {
	if !KnownKey(key) {
		return ErrUnknownKey
	}
	prefix := []byte(settingsPrefix + key)

	go func() {
		err := s.db.Subscribe(ctx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.Kv {
				if string(kv.Key) != string(prefix) {
					continue
				}
				fn(Change{Key: key, Value: string(kv.Value), Deleted: len(kv.Value) == 0})
			}
			return nil
		}, []pb.Match{{Prefix: prefix}})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("setting watch ended", "key", key, slog.String("error", err.Error()))
		}
	}()
	return nil
}

func settingKey(key string) []byte {
	return []byte(settingsPrefix + key)
}
