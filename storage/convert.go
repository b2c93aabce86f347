package storage

import (
	"encoding/json"

	"rewind/domain"
	"rewind/logging"
)

// Conversion helpers between GORM rows and domain entities. JSON columns
// that fail to decode are logged and returned empty rather than failing the
// whole read.

func marshalJSON(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		logging.Logger.Warn("failed to marshal JSON column", "error", err)
		return "null"
	}
	return string(data)
}

func unmarshalMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logging.Logger.Warn("failed to unmarshal JSON column", "error", err)
		return map[string]any{}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func unmarshalAny(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logging.Logger.Warn("failed to unmarshal JSON column", "error", err)
		return nil
	}
	return v
}

func convertToExternalSession(s ExternalSession) domain.ExternalSession {
	return domain.ExternalSession{
		ID:               s.ID,
		UserID:           s.UserID,
		Name:             s.Name,
		IsActive:         s.IsActive,
		CurrentSessionID: s.CurrentSessionID,
		BranchCount:      s.BranchCount,
		TotalCheckpoints: s.TotalCheckpoints,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func convertToInternalSession(s InternalSession) domain.InternalSession {
	return domain.InternalSession{
		ID:                s.ID,
		ExternalSessionID: s.ExternalSessionID,
		RuntimeID:         s.RuntimeID,
		ParentSessionID:   s.ParentSessionID,
		BranchCheckpoint:  s.BranchCheckpointID,
		IsCurrent:         s.IsCurrent,
		CheckpointCount:   s.CheckpointCount,
		ToolCount:         s.ToolCount,
		StateSnapshot:     s.StateSnapshot,
		CreatedAt:         s.CreatedAt,
	}
}

func convertToCheckpoint(c Checkpoint) domain.Checkpoint {
	return domain.Checkpoint{
		ID:                c.ID,
		InternalSessionID: c.InternalSessionID,
		Name:              c.Name,
		StateSnapshot:     c.StateSnapshot,
		ToolTrackPosition: c.ToolTrackPosition,
		IsAuto:            c.IsAuto,
		Metadata:          unmarshalMap(c.Metadata),
		CreatedAt:         c.CreatedAt,
	}
}

func convertToInvocation(r ToolInvocation) domain.ToolInvocation {
	return domain.ToolInvocation{
		SessionID: r.SessionID,
		Ordinal:   r.Ordinal,
		ToolName:  r.ToolName,
		Arguments: unmarshalMap(r.Arguments),
		Result:    unmarshalAny(r.Result),
		Reversed:  r.Reversed,
		CreatedAt: r.CreatedAt,
	}
}

func convertToUser(u User) domain.User {
	return domain.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		APIKey:       u.APIKey,
		IsAdmin:      u.IsAdmin,
		Preferences:  unmarshalMap(u.Preferences),
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}
}
