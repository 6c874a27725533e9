// Command dkg-harness runs an in-process simulation of the
// verification-key pipeline across several participants sharing one
// ledger.MockLedger, exercising the six end-to-end scenarios described in
// spec.md §8. It is not a production entry point — spec.md §6 states "No
// CLI surface exists in this core; it is invoked by an outer epoch driver"
// — this binary plays that outer driver's role for demonstration and
// local testing, the same way drand/demo/main.go orchestrates a cluster of
// drand nodes without itself being the drand binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/dkg"
	"github.com/nymtech/dkg-vkshare/internal/keystore"
	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

var scenario = flag.String("scenario", "all-good", "which scenario to run: all-good, malformed, missing, verification-error, malformed-share, unpaired-share")

func main() {
	flag.Parse()

	runID := uuid.New().String()
	logger := log.DefaultLogger().With("run_id", runID)

	if err := runScenario(*scenario, logger); err != nil {
		fmt.Fprintln(os.Stderr, "dkg-harness:", err)
		os.Exit(1)
	}
}

// participant bundles one simulated DKG participant's identity and derived
// pipeline, mirroring the Rust test module's per-client state bundle.
type participant struct {
	address types.DealerAddress
	index   types.NodeIndex
	dkgKey  bte.KeyPair
	state   *dkg.State
	line    dkg.Pipeline
}

func runScenario(name string, logger log.Logger) error {
	const participantCount = 3
	const threshold = 2

	constants := types.DefaultConstants()
	params := bte.Setup()

	addresses := []types.DealerAddress{"dealer-a", "dealer-b", "dealer-c"}
	dealersByAddr := make(map[types.DealerAddress]types.NodeIndex, participantCount)
	dkgKeys := make(map[types.DealerAddress]bte.KeyPair, participantCount)
	for i, addr := range addresses {
		dealersByAddr[addr] = types.NodeIndex(i + 1)
		dkgKeys[addr] = bte.NewKeyPair(params)
	}

	receivers := make(map[types.NodeIndex]bte.KeyPair, participantCount)
	for addr, idx := range dealersByAddr {
		receivers[idx] = dkgKeys[addr]
	}

	mockLedger := ledger.NewMockLedger(participantCount)

	for p := 0; p < constants.TotalDealings; p++ {
		for _, addr := range addresses {
			// The "missing" scenario drops dealer-a's postings entirely
			// rather than corrupting their bytes, so it's handled here
			// instead of inside corruptDealingIfNeeded.
			if name == "missing" && addr == "dealer-a" {
				continue
			}
			dealing, err := generateDealing(params, threshold, receivers)
			if err != nil {
				return err
			}
			raw, err := corruptDealingIfNeeded(name, addr, dealing)
			if err != nil {
				return err
			}
			mockLedger.PostDealing(addr, p, raw)
		}
	}

	tmpDir, err := os.MkdirTemp("", "dkg-harness-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	participants := make([]*participant, 0, participantCount)
	for _, addr := range addresses {
		state := dkg.NewState(addr, dealersByAddr, dkgKeys[addr], threshold)

		keyPairPath := keystore.KeyPairPath{
			PrivateKeyPath: tmpDir + "/" + string(addr) + ".private.pem",
			PublicKeyPath:  tmpDir + "/" + string(addr) + ".public.pem",
		}

		filter, err := dkg.NewFilter(params, constants.TotalDealings, mockLedger, logger)
		if err != nil {
			return err
		}

		line := dkg.Pipeline{
			Filter: filter,
			Deriver: &dkg.Deriver{
				Params:      params,
				Constants:   constants,
				Ledger:      mockLedger,
				Logger:      logger,
				KeyPairPath: keyPairPath,
			},
			Validator: &dkg.Validator{Constants: constants, Ledger: mockLedger, Logger: logger},
			Finalizer: &dkg.Finalizer{Ledger: mockLedger, Logger: logger},
		}

		participants = append(participants, &participant{
			address: addr,
			index:   dealersByAddr[addr],
			dkgKey:  dkgKeys[addr],
			state:   state,
			line:    line,
		})
	}

	ctx := context.Background()

	// Derivation: each participant filters and derives/submits.
	for _, p := range participants {
		dealingsMaps, err := p.line.Filter.Run(ctx, p.state)
		if err != nil {
			return fmt.Errorf("%s: filter: %w", p.address, err)
		}
		if err := p.line.Deriver.Run(ctx, p.state, dealingsMaps); err != nil {
			return fmt.Errorf("%s: deriver: %w", p.address, err)
		}
	}

	if name == "malformed-share" {
		corruptPublishedShare(mockLedger, addresses[0])
	}
	if name == "unpaired-share" {
		overwriteWithPeerShare(mockLedger, addresses[0], addresses[1])
	}

	// Validation: each participant votes on every peer's share.
	for _, p := range participants {
		if err := p.line.Validator.Run(ctx, p.state); err != nil {
			return fmt.Errorf("%s: validator: %w", p.address, err)
		}
	}

	// Finalization: each participant executes its own proposal, if passed.
	for _, p := range participants {
		status, ok := mockLedger.ProposalStatusFor(p.address)
		if !ok || status != ledger.ProposalPassed {
			continue
		}
		if err := p.line.Finalizer.Run(ctx, p.state); err != nil {
			return fmt.Errorf("%s: finalizer: %w", p.address, err)
		}
	}

	for _, p := range participants {
		status, _ := mockLedger.ProposalStatusFor(p.address)
		fmt.Printf("%s: proposal=%s keypair_set=%v bad_dealers=%v\n",
			p.address, status, p.state.CoconutKeyPairIsSome(), p.state.BadDealers)
	}

	return nil
}

// corruptDealingIfNeeded mangles addr's dealing bytes to drive the
// corruption scenarios from spec.md §8, mirroring the Rust test module's
// byte-level truncation/mutation helpers.
func corruptDealingIfNeeded(scenario string, addr types.DealerAddress, dealing *dkgshare.Dealing) ([]byte, error) {
	raw, err := dealing.Marshal()
	if err != nil {
		return nil, err
	}
	if addr != "dealer-a" {
		return raw, nil
	}

	switch scenario {
	case "malformed":
		return raw[:len(raw)-1], nil
	case "verification-error":
		mutated := append([]byte(nil), raw...)
		mutated[len(mutated)-1] ^= 0xFF
		return mutated, nil
	default:
		return raw, nil
	}
}

func corruptPublishedShare(l *ledger.MockLedger, addr types.DealerAddress) {
	shares, _ := l.GetVerificationKeyShares(context.Background())
	for _, s := range shares {
		if s.Owner == addr {
			_, _ = l.SubmitVerificationKeyShare(context.Background(), addr, s.NodeIndex, s.Share+"!")
		}
	}
}

func overwriteWithPeerShare(l *ledger.MockLedger, target, source types.DealerAddress) {
	shares, _ := l.GetVerificationKeyShares(context.Background())
	var sourceShare, targetShare ledger.ContractVKShare
	for _, s := range shares {
		if s.Owner == source {
			sourceShare = s
		}
		if s.Owner == target {
			targetShare = s
		}
	}
	if sourceShare.Share == "" || targetShare.Share == "" {
		return
	}
	_, _ = l.SubmitVerificationKeyShare(context.Background(), target, targetShare.NodeIndex, sourceShare.Share)
}
