package mps

import (
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"golang.org/x/xerrors"
)

// MpsAggregator combines signature shares into the final aggregate
// signature of a packet.
type MpsAggregator struct{}

// NewMpsAggregator returns an aggregator.
func NewMpsAggregator() *MpsAggregator {
	return &MpsAggregator{}
}

// BuildMultiSignature installs the signature info on the packet, aggregates
// the collected shares and attaches the aggregate as the signature value.
// Every share must have been produced over the packet canonicalized with
// the exact same signature info, otherwise the aggregate will not verify.
func (a *MpsAggregator) BuildMultiSignature(data *encoding.Data,
	sigInfo encoding.SignatureInfo, pieces [][]byte) error {

	if len(pieces) == 0 {
		return xerrors.New("no signature piece to aggregate")
	}

	sigs := make([]crypto.Signature, len(pieces))
	for i, piece := range pieces {
		sig, err := bls.SignatureFromBytes(piece)
		if err != nil {
			return xerrors.Errorf("couldn't parse piece %d: %v", i, err)
		}

		sigs[i] = sig
	}

	agg, err := bls.AggregateSignatures(sigs...)
	if err != nil {
		return xerrors.Errorf("couldn't aggregate: %v", err)
	}

	value, err := agg.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal aggregate: %v", err)
	}

	data.SetSignatureInfo(sigInfo)
	data.SigValue = value

	return nil
}
