// Package protocol implements the multi-party signing exchange: the signer
// endpoint answering sign requests, the initiator driving a signing session
// and aggregating the collected shares, and the asynchronous verifier that
// resolves missing dependencies before verifying.
//
// The packages follow the cooperative single-threaded model of the face
// abstraction: handlers and timers run serially, so the records and caches
// are mutated without locking.
package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/ndnmps"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/mps"
	"golang.org/x/xerrors"
)

const (
	// Timeout bounds every outgoing interest.
	Timeout = 4 * time.Second

	// EstimateProcessTime is the wait advertised to a poller while a share
	// is being computed.
	EstimateProcessTime = time.Second

	// PollDelay is the delay before the initiator polls a result name.
	PollDelay = EstimateProcessTime + EstimateProcessTime/5

	// SessionDeadline bounds a signing session: one round trip to solicit,
	// the processing estimate, and one round trip to collect.
	SessionDeadline = Timeout + EstimateProcessTime + Timeout
)

// HmacKeyPrefix is the name prefix reserved for the HMAC key derivation of
// the encrypted exchange; the request id is appended when used.
const HmacKeyPrefix = "/ndn/mps/hmac"

// SignatureFinishCallback receives the fully signed packet and the signer
// list packet named by its key locator.
type SignatureFinishCallback func(signedData, signerList *encoding.Data)

// SignatureFailureCallback receives the packet left unsigned and the reason
// of the failure.
type SignatureFailureCallback func(unfinishedData *encoding.Data, reason string)

// VerifyFinishCallback receives the outcome of an asynchronous
// verification.
type VerifyFinishCallback func(bool)

// InterestVerifyCallback decides whether an incoming interest is authorized.
type InterestVerifyCallback func(*encoding.Interest) bool

// DataVerifyCallback decides whether a fetched packet is acceptable.
type DataVerifyCallback func(*encoding.Data) bool

// PacketSigner signs the packets a protocol party emits with its own key,
// independently from the BLS key used for shares.
type PacketSigner interface {
	SignData(*encoding.Data) error
	SignInterest(*encoding.Interest) error
}

// mpsPacketSigner signs packets with a local BLS signer.
//
// - implements protocol.PacketSigner
type mpsPacketSigner struct {
	signer *mps.MpsSigner
}

// NewMpsPacketSigner returns a packet signer backed by a local BLS signer.
func NewMpsPacketSigner(signer *mps.MpsSigner) PacketSigner {
	return mpsPacketSigner{signer: signer}
}

// SignData implements protocol.PacketSigner.
func (s mpsPacketSigner) SignData(data *encoding.Data) error {
	return s.signer.Sign(data)
}

// SignInterest implements protocol.PacketSigner.
func (s mpsPacketSigner) SignInterest(itr *encoding.Interest) error {
	itr.SetSignatureInfo(encoding.NewSignatureInfo(mps.SignatureSha256WithBls, s.signer.KeyName()))

	value, err := s.signer.SignBytes(itr.SignedRanges())
	if err != nil {
		return xerrors.Errorf("couldn't sign interest: %v", err)
	}

	itr.SigValue = value
	itr.AppendParamsDigest()

	return nil
}

// keyChainSigner delegates the signing operation to an external key chain
// through a callback.
//
// - implements protocol.PacketSigner
type keyChainSigner struct {
	keyName encoding.Name
	sigType uint64
	sign    func(msg []byte) ([]byte, error)
}

// NewKeyChainSigner returns a packet signer that calls into an external key
// chain to sign the canonical bytes.
func NewKeyChainSigner(keyName encoding.Name, sigType uint64,
	sign func(msg []byte) ([]byte, error)) PacketSigner {

	return keyChainSigner{
		keyName: keyName,
		sigType: sigType,
		sign:    sign,
	}
}

// SignData implements protocol.PacketSigner.
func (s keyChainSigner) SignData(data *encoding.Data) error {
	sigInfo := encoding.NewSignatureInfo(s.sigType, s.keyName)
	data.SetSignatureInfo(sigInfo)

	value, err := s.sign(data.SignedRanges())
	if err != nil {
		return xerrors.Errorf("key chain refused to sign: %v", err)
	}

	data.SigValue = value

	return nil
}

// SignInterest implements protocol.PacketSigner.
func (s keyChainSigner) SignInterest(itr *encoding.Interest) error {
	itr.SetSignatureInfo(encoding.NewSignatureInfo(s.sigType, s.keyName))

	value, err := s.sign(itr.SignedRanges())
	if err != nil {
		return xerrors.Errorf("key chain refused to sign: %v", err)
	}

	itr.SigValue = value
	itr.AppendParamsDigest()

	return nil
}

func randomUint64() uint64 {
	buf := make([]byte, 8)
	rand.Read(buf)

	return binary.BigEndian.Uint64(buf)
}

func randomUint32() uint32 {
	buf := make([]byte, 4)
	rand.Read(buf)

	return binary.BigEndian.Uint32(buf)
}

func randomHex64() string {
	buf := make([]byte, 8)
	rand.Read(buf)

	return hexEncode(buf)
}

func hexEncode(buf []byte) string {
	const digits = "0123456789abcdef"

	out := make([]byte, 0, len(buf)*2)
	for _, b := range buf {
		out = append(out, digits[b>>4], digits[b&0xf])
	}

	return string(out)
}

// Prometheus metrics of the protocol parties.
var (
	promSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnmps_initiator_sessions_total",
		Help: "total number of signing sessions by result",
	}, []string{"result"})

	promShares = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ndnmps_initiator_shares_collected_total",
		Help: "total number of valid signature shares collected",
	})

	promSignRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnmps_signer_requests_total",
		Help: "total number of sign requests by reply code",
	}, []string{"code"})

	promVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndnmps_verifier_results_total",
		Help: "total number of asynchronous verifications by outcome",
	}, []string{"outcome"})
)

func init() {
	ndnmps.PromCollectors = append(ndnmps.PromCollectors,
		promSessions, promShares, promSignRequests, promVerifications)
}
