package protocol

import (
	"github.com/rs/zerolog"
	"go.dedis.ch/ndnmps"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/face"
	"go.dedis.ch/ndnmps/mps"
	"go.dedis.ch/ndnmps/schema"
)

// verificationRecord is one pending verification waiting for its missing
// dependencies.
type verificationRecord struct {
	data     *encoding.Data
	schema   schema.MultipartySchema
	callback VerifyFinishCallback
	itemLeft int
}

// Verifier resolves the missing dependencies of a received packet over the
// network, then verifies its multi-party signature.
type Verifier struct {
	verifier  *mps.MpsVerifier
	face      face.Face
	fetchKeys bool

	certVerify DataVerifyCallback

	queue  map[uint32]*verificationRecord
	index  map[string]map[uint32]struct{}
	logger zerolog.Logger
}

// NewVerifier returns an asynchronous verifier over the caches of the given
// core verifier. When fetchKeys is false, packets fetched under a
// certificate name are not installed as keys.
func NewVerifier(verifier *mps.MpsVerifier, f face.Face, fetchKeys bool) *Verifier {
	return &Verifier{
		verifier:  verifier,
		face:      f,
		fetchKeys: fetchKeys,
		queue:     make(map[uint32]*verificationRecord),
		index:     make(map[string]map[uint32]struct{}),
		logger:    ndnmps.Logger.With().Str("role", "verifier").Logger(),
	}
}

// SetCertVerifyCallback installs the validation applied to fetched
// certificates before their key is installed.
func (v *Verifier) SetCertVerifyCallback(fn DataVerifyCallback) {
	v.certVerify = fn
}

// Close drops every pending record without firing its callback.
func (v *Verifier) Close() {
	v.queue = make(map[uint32]*verificationRecord)
	v.index = make(map[string]map[uint32]struct{})
}

// AsyncVerifySignature verifies the packet against the schema. When every
// dependency is cached the callback is invoked immediately, otherwise the
// missing certificates and signer lists are fetched first. The callback
// fires exactly once.
func (v *Verifier) AsyncVerifySignature(data *encoding.Data, s schema.MultipartySchema,
	callback VerifyFinishCallback) {

	if v.verifier.ReadyToVerify(data) {
		err := v.verifier.VerifySignature(data, s)
		if err != nil {
			v.logger.Err(err).Str("name", data.Name.String()).Msg("verification failed")
			promVerifications.WithLabelValues("invalid").Inc()
			callback(false)
			return
		}

		promVerifications.WithLabelValues("valid").Inc()
		callback(true)
		return
	}

	items := v.verifier.ItemsToFetch(data)
	if len(items) == 0 {
		// No key locator to resolve: the packet can never verify.
		promVerifications.WithLabelValues("invalid").Inc()
		callback(false)
		return
	}

	id := randomUint32()
	record := &verificationRecord{
		data:     data,
		schema:   s,
		callback: callback,
		itemLeft: len(items),
	}

	// The record is indexed before the interests go out: a dependency may be
	// served synchronously, resolving or failing the record mid-loop.
	v.queue[id] = record
	for _, item := range items {
		if v.index[item.String()] == nil {
			v.index[item.String()] = make(map[uint32]struct{})
		}
		v.index[item.String()][id] = struct{}{}
	}

	for _, item := range items {
		if _, ok := v.queue[id]; !ok {
			return
		}

		itr := &encoding.Interest{
			Name:        item,
			CanBePrefix: true,
			MustBeFresh: true,
			Lifetime:    Timeout,
		}

		v.face.Express(itr, v.onData, v.onFailure)
	}
}

// removeAll fails every record waiting on the name.
func (v *Verifier) removeAll(name encoding.Name) {
	for id := range v.index[name.String()] {
		record, ok := v.queue[id]
		if !ok {
			continue
		}

		delete(v.queue, id)
		promVerifications.WithLabelValues("unresolved").Inc()
		record.callback(false)
	}

	delete(v.index, name.String())
}

// satisfyItem resolves the name for every record waiting on it. A record
// whose last dependency resolved re-enters the verification, which either
// completes or fetches further dependencies.
func (v *Verifier) satisfyItem(name encoding.Name) {
	for id := range v.index[name.String()] {
		record, ok := v.queue[id]
		if !ok {
			continue
		}

		if record.itemLeft > 1 {
			record.itemLeft--
			continue
		}

		delete(v.queue, id)
		v.AsyncVerifySignature(record.data, record.schema, record.callback)
	}

	delete(v.index, name.String())
}

func (v *Verifier) onData(itr *encoding.Interest, data *encoding.Data) {
	if v.fetchKeys && isCertName(data.Name) {
		v.onCert(itr, data)
		return
	}

	list, err := mps.DecodeSignerList(data.Content)
	if err != nil {
		v.logger.Err(err).Str("name", itr.Name.String()).Msg("signer list not found")
		v.removeAll(itr.Name)
		return
	}

	v.verifier.AddSignerList(itr.Name, list)
	v.satisfyItem(itr.Name)
}

func (v *Verifier) onCert(itr *encoding.Interest, data *encoding.Data) {
	if v.certVerify == nil || !v.certVerify(data) {
		v.logger.Error().Str("name", itr.Name.String()).Msg("certificate cannot be verified")
		v.removeAll(itr.Name)
		return
	}

	pk, err := bls.PublicKeyFromBytes(data.Content)
	if err != nil {
		v.logger.Err(err).Str("name", itr.Name.String()).Msg("certificate cannot be decoded")
		v.removeAll(itr.Name)
		return
	}

	v.verifier.AddCert(itr.Name, pk)
	v.satisfyItem(itr.Name)
}

func (v *Verifier) onFailure(itr *encoding.Interest, err error) {
	v.logger.Err(err).Str("name", itr.Name.String()).Msg("dependency fetch failed")
	v.removeAll(itr.Name)
}

// isCertName follows the naming convention of certificates: the name of a
// key certificate carries a KEY component.
func isCertName(name encoding.Name) bool {
	for i := 0; i < name.Size(); i++ {
		comp := name.Get(i)
		if comp.Type == encoding.TypeGenericComponent && string(comp.Value) == "KEY" {
			return true
		}
	}

	return false
}
