package dkg

import (
	"bytes"
	"os"
	"path"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/drand/kyber"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// Store checkpoints State across restarts, keyed by epoch id, so a crash
// between stages resumes at the next unfinished one rather than re-running
// the whole pipeline (spec.md §2's "stages are checkpointed"). Grounded on
// drand's internal/dkg/store.go boltStore: one bbolt bucket, TOML-encoded
// values, a single db handle behind a mutex.
//
// The BTE keypair used to decrypt shares is "set at construction" per
// spec.md §3's State table, not itself checkpointed here: callers supply it
// fresh to Get from wherever they keep participant key material, the same
// way the keystore's write-only contract keeps key material out of general
// state management.
type Store interface {
	Get(epochID string, dkgKeyPair bte.KeyPair) (*State, error)
	Save(epochID string, state *State) error
	Close() error
}

const boltFileName = "dkg-vkshare.db"
const boltOpenPerm = 0660
const dirPerm = 0755

var stateBucket = []byte("dkg_state")

type boltStore struct {
	sync.RWMutex
	db     *bolt.DB
	g2     kyber.Group // group RecoveredVKs / VerificationKey points live in
	g1     kyber.Group // group the BTE keypair / SecretKey scalars live in
	logger log.Logger
}

// NewBoltStore opens (creating if absent) a bbolt-backed Store under
// baseFolder. g1 and g2 are the kyber groups this epoch's BTE keys and
// Coconut verification-key components live in, respectively, needed to
// unmarshal checkpointed points and scalars back into kyber values.
func NewBoltStore(baseFolder string, g1, g2 kyber.Group, logger log.Logger) (Store, error) {
	if err := os.MkdirAll(baseFolder, dirPerm); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path.Join(baseFolder, boltFileName), boltOpenPerm, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &boltStore{db: db, g1: g1, g2: g2, logger: logger}, nil
}

func (s *boltStore) Get(epochID string, dkgKeyPair bte.KeyPair) (*State, error) {
	s.RLock()
	defer s.RUnlock()

	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		if bucket == nil {
			return errors.New("dkg: state bucket missing")
		}
		value := bucket.Get([]byte(epochID))
		if value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var snapshot dbState
	if _, err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&snapshot); err != nil {
		return nil, errors.Wrap(err, "dkg: decoding checkpointed state")
	}

	return snapshot.toState(s.g1, s.g2, dkgKeyPair)
}

func (s *boltStore) Save(epochID string, state *State) error {
	s.Lock()
	defer s.Unlock()

	snapshot, err := newDBState(state)
	if err != nil {
		return errors.Wrap(err, "dkg: encoding state for checkpoint")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(snapshot); err != nil {
		return errors.Wrap(err, "dkg: toml-encoding checkpoint")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		if bucket == nil {
			return errors.New("dkg: state bucket missing")
		}
		return bucket.Put([]byte(epochID), buf.Bytes())
	})
}

func (s *boltStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Errorw("dkg: closing checkpoint store", "err", err)
		return err
	}
	return nil
}

// dbState is State's TOML-serializable checkpoint shape: kyber points and
// scalars are flattened to their MarshalBinary bytes via dkgshare's wire
// helpers, the same approach Dealing.Marshal uses for the same types.
type dbState struct {
	OwnAddress     string
	ThresholdValue int

	DealersByAddr map[string]uint64
	BadDealers    map[string]int

	RecoveredVKs []recoveredVKsTOML

	HasCoconutKeyPair bool
	SecretKeyX        []byte
	SecretKeyY        []byte
	VKAlpha           []byte
	VKBeta            []byte

	ProposalID    uint64
	HasProposalID bool

	VotedVKs         bool
	ExecutedProposal bool
}

type recoveredVKsTOML struct {
	Coefficients       []byte
	RecoveredPartials  []byte
	ReceiverIndexOrder []uint64
}

func newDBState(state *State) (*dbState, error) {
	d := &dbState{
		OwnAddress:        string(state.OwnAddress),
		ThresholdValue:    state.ThresholdValue,
		DealersByAddr:     make(map[string]uint64, len(state.DealersByAddr)),
		BadDealers:        make(map[string]int, len(state.BadDealers)),
		HasCoconutKeyPair: state.CoconutKeyPairIsSome(),
		ProposalID:        state.ProposalID,
		HasProposalID:     state.HasProposalID,
		VotedVKs:          state.VotedVKs,
		ExecutedProposal:  state.ExecutedProposal,
	}

	for addr, idx := range state.DealersByAddr {
		d.DealersByAddr[string(addr)] = uint64(idx)
	}
	for addr, reason := range state.BadDealers {
		d.BadDealers[string(addr)] = int(reason)
	}

	for _, recovered := range state.RecoveredVKs {
		coeffs, err := dkgshare.MarshalPoints(recovered.Coefficients)
		if err != nil {
			return nil, err
		}
		partials, err := dkgshare.MarshalPoints(recovered.RecoveredPartials)
		if err != nil {
			return nil, err
		}
		order := make([]uint64, len(recovered.ReceiverIndexOrder))
		for i, idx := range recovered.ReceiverIndexOrder {
			order[i] = uint64(idx)
		}
		d.RecoveredVKs = append(d.RecoveredVKs, recoveredVKsTOML{
			Coefficients:       coeffs,
			RecoveredPartials:  partials,
			ReceiverIndexOrder: order,
		})
	}

	if state.CoconutKeyPairIsSome() {
		skX, err := dkgshare.MarshalScalars([]kyber.Scalar{state.CoconutKeyPair.X})
		if err != nil {
			return nil, err
		}
		skY, err := dkgshare.MarshalScalars(state.CoconutKeyPair.Y)
		if err != nil {
			return nil, err
		}
		vkAlpha, err := dkgshare.MarshalPoints([]kyber.Point{state.VerificationKey.Alpha})
		if err != nil {
			return nil, err
		}
		vkBeta, err := dkgshare.MarshalPoints(state.VerificationKey.Beta)
		if err != nil {
			return nil, err
		}
		d.SecretKeyX = skX
		d.SecretKeyY = skY
		d.VKAlpha = vkAlpha
		d.VKBeta = vkBeta
	}

	return d, nil
}

func (d *dbState) toState(g1, g2 kyber.Group, dkgKeyPair bte.KeyPair) (*State, error) {
	dealersByAddr := make(map[types.DealerAddress]types.NodeIndex, len(d.DealersByAddr))
	for addr, idx := range d.DealersByAddr {
		dealersByAddr[types.DealerAddress(addr)] = types.NodeIndex(idx)
	}

	state := NewState(types.DealerAddress(d.OwnAddress), dealersByAddr, dkgKeyPair, d.ThresholdValue)

	state.BadDealers = make(map[types.DealerAddress]types.ComplaintReason, len(d.BadDealers))
	for addr, reason := range d.BadDealers {
		state.BadDealers[types.DealerAddress(addr)] = types.ComplaintReason(reason)
	}

	for _, r := range d.RecoveredVKs {
		coeffs, err := dkgshare.UnmarshalPoints(g2, r.Coefficients)
		if err != nil {
			return nil, err
		}
		partials, err := dkgshare.UnmarshalPoints(g2, r.RecoveredPartials)
		if err != nil {
			return nil, err
		}
		order := make([]types.NodeIndex, len(r.ReceiverIndexOrder))
		for i, idx := range r.ReceiverIndexOrder {
			order[i] = types.NodeIndex(idx)
		}
		state.RecoveredVKs = append(state.RecoveredVKs, dkgshare.RecoveredVerificationKeys{
			Coefficients:       coeffs,
			RecoveredPartials:  partials,
			ReceiverIndexOrder: order,
		})
	}

	state.ProposalID = d.ProposalID
	state.HasProposalID = d.HasProposalID
	state.VotedVKs = d.VotedVKs
	state.ExecutedProposal = d.ExecutedProposal

	if d.HasCoconutKeyPair {
		x, err := dkgshare.UnmarshalScalars(g1, d.SecretKeyX)
		if err != nil {
			return nil, err
		}
		y, err := dkgshare.UnmarshalScalars(g1, d.SecretKeyY)
		if err != nil {
			return nil, err
		}
		alpha, err := dkgshare.UnmarshalPoints(g2, d.VKAlpha)
		if err != nil {
			return nil, err
		}
		beta, err := dkgshare.UnmarshalPoints(g2, d.VKBeta)
		if err != nil {
			return nil, err
		}
		sk := coconut.FromRaw(x[0], y)
		state.CoconutKeyPair = &sk
		state.VerificationKey = &coconut.VerificationKey{G2: g2.Point().Base(), Alpha: alpha[0], Beta: beta}
	}

	return state, nil
}
