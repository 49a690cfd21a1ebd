package store

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zrma/go-voiceprint/voiceprint"
)

const payloadVersion = 1

// payload는 저장소에 기록되는 레코드 본문이다. 사용자 ID는 키에 들어가므로 제외한다.
type payload struct {
	Version   int       `msgpack:"v"`
	Signature []float64 `msgpack:"sig"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

func encodeRecord(rec Record) ([]byte, error) {
	b, err := msgpack.Marshal(&payload{
		Version:   payloadVersion,
		Signature: rec.Signature,
		UpdatedAt: rec.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "store: encode record for %q", rec.UserID)
	}
	return b, nil
}

func decodeRecord(userID string, b []byte) (Record, error) {
	var p payload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return Record{}, errors.Wrapf(ErrCorrupt, "decode record for %q: %v", userID, err)
	}
	if p.Version != payloadVersion {
		return Record{}, errors.Wrapf(ErrCorrupt, "record for %q has unsupported version %d", userID, p.Version)
	}
	if len(p.Signature) == 0 {
		return Record{}, errors.Wrapf(ErrCorrupt, "record for %q has empty signature", userID)
	}
	return Record{
		UserID:    userID,
		Signature: voiceprint.Signature(p.Signature),
		UpdatedAt: p.UpdatedAt.UTC(),
	}, nil
}
