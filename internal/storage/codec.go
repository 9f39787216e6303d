package storage

import (
	"errors"
	"fmt"

	"modelarena/internal/core"
	"modelarena/internal/util"
)

// errCorruptRecord marks a stored record that no longer decodes.
var errCorruptRecord = errors.New("corrupt battle record")

func encodeSession(s *core.BattleSession) ([]byte, error) {
	data, err := util.MarshalJSON(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode battle %s: %w", s.BattleID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*core.BattleSession, error) {
	var s core.BattleSession
	if err := util.UnmarshalJSON(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	if s.CachedResponses == nil {
		s.CachedResponses = map[string]string{}
	}
	return &s, nil
}

// storedVersion reads only the version field of an encoded record.
func storedVersion(data []byte) (int64, error) {
	var head struct {
		Version int64 `json:"version"`
	}
	if err := util.UnmarshalJSON(data, &head); err != nil {
		return 0, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	return head.Version, nil
}

func checkVersion(battleID string, stored, incoming int64) error {
	if stored >= incoming {
		return fmt.Errorf("%w: battle %s is at version %d, write carries %d", core.ErrStaleWrite, battleID, stored, incoming)
	}
	return nil
}
