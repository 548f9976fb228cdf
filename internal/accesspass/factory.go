package accesspass

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("access_pass_not_found")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

// Factory mints and extends access passes. It sits outside the ledger: it is
// driven by purchase events and its failures never touch subscriptions.
type Factory struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	priv     ed25519.PrivateKey
	verifier *Verifier
	issuer   string
}

func NewFactory(p Params) (*Factory, error) {
	log := p.Log.Named("accesspass.factory")

	var priv ed25519.PrivateKey
	if p.Config.AccessPass.PrivateKey != "" {
		key, err := ParsePrivateKey(p.Config.AccessPass.PrivateKey)
		if err != nil {
			return nil, err
		}
		priv = key
	} else {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		priv = key
		log.Warn("access_pass.private_key not set, using an ephemeral signing key")
	}

	return &Factory{
		db:       p.DB,
		log:      log,
		genID:    p.GenID,
		clock:    p.Clock,
		priv:     priv,
		verifier: NewVerifier(priv.Public().(ed25519.PublicKey)),
		issuer:   p.Config.AccessPass.Issuer,
	}, nil
}

// PublicKey is what third parties need to verify passes offline.
func (f *Factory) PublicKey() ed25519.PublicKey {
	return f.priv.Public().(ed25519.PublicKey)
}

// MintOrExtend issues a pass valid until expiresAt. An existing pass is only
// replaced when the new expiry is later, so replayed events are harmless.
func (f *Factory) MintOrExtend(ctx context.Context, holder string, channelID uint64, expiresAt time.Time) (*AccessPass, error) {
	holder = identity.Normalize(holder)
	now := f.clock.Now(ctx).UTC()

	var out *AccessPass
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []AccessPass
		if err := tx.Where("holder = ? AND channel_id = ?", holder, channelID).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) > 0 && !expiresAt.After(rows[0].ExpiresAt) {
			out = &rows[0]
			return nil
		}

		payload := Payload{
			ID:        f.genID.Generate().String(),
			Holder:    holder,
			ChannelID: channelID,
			ExpiresAt: expiresAt.UTC(),
			IssuedAt:  now,
			Issuer:    f.issuer,
		}
		doc, err := Sign(f.priv, payload)
		if err != nil {
			return err
		}

		pass := &AccessPass{
			Holder:    holder,
			ChannelID: channelID,
			PassID:    payload.ID,
			ExpiresAt: payload.ExpiresAt,
			Document:  datatypes.JSON(doc),
			IssuedAt:  now,
			UpdatedAt: now,
		}
		if err := tx.Save(pass).Error; err != nil {
			return err
		}
		out = pass
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.log.Debug("access pass issued",
		zap.String("holder", holder),
		zap.Uint64("channel_id", channelID),
		zap.Time("expires_at", out.ExpiresAt),
	)
	return out, nil
}

func (f *Factory) Get(ctx context.Context, holder string, channelID uint64) (*AccessPass, error) {
	var rows []AccessPass
	err := f.db.WithContext(ctx).
		Where("holder = ? AND channel_id = ?", identity.Normalize(holder), channelID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Verify checks a pass document against this factory's key at ledger time.
func (f *Factory) Verify(ctx context.Context, doc []byte) (*Payload, error) {
	return f.verifier.ParseAndVerify(doc, f.clock.Now(ctx))
}

// Token re-encodes the stored pass for holder as a compact JWT.
func (f *Factory) Token(ctx context.Context, holder string, channelID uint64) (string, error) {
	pass, err := f.Get(ctx, holder, channelID)
	if err != nil {
		return "", err
	}
	var doc Pass
	if err := json.Unmarshal(pass.Document, &doc); err != nil {
		return "", ErrInvalidFormat
	}
	return SignToken(f.priv, doc.Payload)
}

// VerifyToken is Verify for the compact JWT form.
func (f *Factory) VerifyToken(ctx context.Context, token string) (*Payload, error) {
	return f.verifier.ParseToken(token, f.clock.Now(ctx))
}
