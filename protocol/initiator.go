package protocol

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/ndnmps"
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/face"
	"go.dedis.ch/ndnmps/mps"
	"go.dedis.ch/ndnmps/schema"
	"golang.org/x/xerrors"
)

// initiationRecord is the state of one in-flight signing session.
type initiationRecord struct {
	schema       schema.MultipartySchema
	unsignedData *encoding.Data
	wrapper      encoding.Data
	onSuccess    SignatureFinishCallback
	onFailure    SignatureFailureCallback

	availableKeys []encoding.Name
	pieces        map[string][]byte
	pieceOrder    []encoding.Name

	deadline face.Event
	logger   zerolog.Logger
}

func (r *initiationRecord) collected() []encoding.Name {
	return r.pieceOrder
}

// Initiator drives signing sessions: it publishes the wrapper packet,
// solicits a share from every eligible signer, validates each returned
// share, and aggregates once the collected set satisfies the schema.
type Initiator struct {
	verifier  *mps.MpsVerifier
	prefix    encoding.Name
	face      face.Face
	scheduler face.Scheduler
	signer    PacketSigner

	keyToPrefix map[string]encoding.Name
	keyOrder    []encoding.Name

	records  map[uint32]*initiationRecord
	wrapToID map[string]uint32

	reg    face.Registration
	logger zerolog.Logger
}

// NewInitiator returns an initiator serving its wrapper packets under
// <prefix>/mps/wrapper. The packet signer signs the wrapper, the sign
// requests and the signer list with the initiator's own key: either a local
// BLS signer or an external key chain, chosen at construction.
func NewInitiator(verifier *mps.MpsVerifier, prefix encoding.Name,
	f face.Face, scheduler face.Scheduler, signer PacketSigner) (*Initiator, error) {

	ini := &Initiator{
		verifier:    verifier,
		prefix:      prefix,
		face:        f,
		scheduler:   scheduler,
		signer:      signer,
		keyToPrefix: make(map[string]encoding.Name),
		records:     make(map[uint32]*initiationRecord),
		wrapToID:    make(map[string]uint32),
		logger:      ndnmps.Logger.With().Str("role", "initiator").Str("prefix", prefix.String()).Logger(),
	}

	reg, err := f.Register(prefix.AppendStr("mps", "wrapper"), ini.onWrapperFetch)
	if err != nil {
		return nil, err
	}
	ini.reg = reg

	return ini, nil
}

// AddSigner registers the endpoint prefix of a signer key. The certificate
// of the key must already be known to the verifier.
func (ini *Initiator) AddSigner(keyName, endpointPrefix encoding.Name) error {
	if !ini.verifier.HasCert(keyName) {
		return xerrors.Errorf("unknown certificate for '%s'", keyName)
	}

	if _, ok := ini.keyToPrefix[keyName.String()]; !ok {
		ini.keyToPrefix[keyName.String()] = endpointPrefix
		ini.keyOrder = append(ini.keyOrder, keyName)
	}

	return nil
}

// AddSignerWithKey installs the certificate of the signer key and registers
// its endpoint prefix.
func (ini *Initiator) AddSignerWithKey(keyName encoding.Name, pk crypto.PublicKey,
	endpointPrefix encoding.Name) error {

	ini.verifier.AddCert(keyName, pk)

	return ini.AddSigner(keyName, endpointPrefix)
}

// Close drops the initiator: the wrapper prefix is unregistered, pending
// timers are cancelled and no callback fires afterwards.
func (ini *Initiator) Close() {
	ini.reg.Unregister()

	for id, record := range ini.records {
		if record.deadline != nil {
			record.deadline.Cancel()
		}
		delete(ini.records, id)
	}

	ini.wrapToID = make(map[string]uint32)
}

// MultiPartySign starts a signing session for the unsigned packet under the
// schema. Exactly one of the callbacks fires: onSuccess with the fully
// signed packet and the signer list packet, or onFailure with a diagnostic.
func (ini *Initiator) MultiPartySign(s schema.MultipartySchema, unsignedData *encoding.Data,
	onSuccess SignatureFinishCallback, onFailure SignatureFailureCallback) {

	var candidates []encoding.Name
	for _, keyName := range ini.keyOrder {
		if len(s.KeyMatches(keyName)) > 0 {
			candidates = append(candidates, keyName)
		}
	}

	if _, ok := s.MinSigners(candidates); !ok {
		ini.logger.Warn().Msg("not enough available signers to satisfy schema")
		promSessions.WithLabelValues("rejected").Inc()
		if onFailure != nil {
			onFailure(unsignedData, "not enough available signers to satisfy schema")
		}
		return
	}

	id := randomUint32()
	record := &initiationRecord{
		schema:        s,
		unsignedData:  unsignedData,
		onSuccess:     onSuccess,
		onFailure:     onFailure,
		availableKeys: candidates,
		pieces:        make(map[string][]byte),
		logger:        ini.logger.With().Str("session", xid.New().String()).Logger(),
	}
	ini.records[id] = record

	// The signature info is fixed before any share is computed: the key
	// locator points at the signer list name, minted now, published at the
	// end of the session.
	wrapperID := randomHex64()
	record.unsignedData.SetSignatureInfo(encoding.NewSignatureInfo(
		mps.SignatureSha256WithBls,
		ini.prefix.AppendStr("mps", "signers", wrapperID),
	))
	record.unsignedData.SigValue = []byte{}

	record.wrapper = encoding.Data{
		Name:            ini.prefix.AppendStr("mps", "wrapper", wrapperID),
		Content:         record.unsignedData.WireEncode(),
		FreshnessPeriod: Timeout,
	}

	err := ini.signer.SignData(&record.wrapper)
	if err != nil {
		ini.failSession(id, fmt.Sprintf("couldn't sign wrapper: %v", err))
		return
	}

	wrapperFullName := record.wrapper.FullName()
	ini.wrapToID[wrapperFullName.String()] = id

	promSessions.WithLabelValues("started").Inc()

	for _, keyName := range record.availableKeys {
		ini.sendSignRequest(id, keyName, wrapperFullName)
	}

	record.logger.Debug().Msg("sent all interests to initiate sign")

	record.deadline = ini.scheduler.Schedule(SessionDeadline, func() {
		ini.onSignTimeout(id)
	})
}

func (ini *Initiator) sendSignRequest(id uint32, keyName, wrapperFullName encoding.Name) {
	endpointPrefix := ini.keyToPrefix[keyName.String()]

	itr := &encoding.Interest{
		Name:          endpointPrefix.AppendStr("mps", "sign"),
		MustBeFresh:   true,
		Lifetime:      Timeout,
		AppParameters: encoding.MakeTLV(mps.TypeParameterDataName, wrapperFullName.WireEncode()),
	}

	err := ini.signer.SignInterest(itr)
	if err != nil {
		ini.logger.Err(err).Msg("couldn't sign request")
		ini.keyLossTimeout(id, keyName)
		return
	}

	ini.face.Express(itr,
		func(_ *encoding.Interest, data *encoding.Data) {
			ini.onReply(id, keyName, data)
		},
		func(_ *encoding.Interest, err error) {
			ini.logger.Err(err).Str("key", keyName.String()).Msg("sign request failed")
			ini.keyLossTimeout(id, keyName)
		})
}

func (ini *Initiator) onWrapperFetch(itr *encoding.Interest) {
	id, ok := ini.wrapToID[itr.Name.String()]
	if !ok {
		ini.logger.Warn().Str("name", itr.Name.String()).Msg("unexpected wrapper fetch")
		return
	}

	record, ok := ini.records[id]
	if !ok {
		ini.logger.Warn().Str("name", itr.Name.String()).Msg("wrapper of finished session")
		return
	}

	err := ini.face.Put(&record.wrapper)
	if err != nil {
		ini.logger.Err(err).Msg("couldn't publish wrapper")
	}
}

func (ini *Initiator) onReply(id uint32, keyName encoding.Name, data *encoding.Data) {
	record, ok := ini.records[id]
	if !ok {
		return
	}

	elems, err := encoding.DecodeTLVs(data.Content)
	if err != nil {
		record.logger.Err(err).Msg("couldn't parse reply content")
		ini.keyLossTimeout(id, keyName)
		return
	}

	statusBlock, ok := encoding.FindTLV(elems, mps.TypeStatus)
	if !ok {
		record.logger.Error().Str("name", data.Name.String()).Msg("signer replied with no status")
		return
	}

	status, err := mps.ParseReplyCode(string(statusBlock.Value))
	if err != nil {
		record.logger.Err(err).Msg("couldn't parse status")
		ini.keyLossTimeout(id, keyName)
		return
	}

	switch status {
	case mps.Processing:
		ini.schedulePoll(id, keyName, elems)
	case mps.OK:
		ini.onShare(id, keyName, elems)
	default:
		record.logger.Error().Stringer("status", status).Msg("signer refused to sign")
		ini.keyLossTimeout(id, keyName)
	}
}

// schedulePoll schedules the poll of the result name advertised by a
// processing reply, PollDelay after the reply.
func (ini *Initiator) schedulePoll(id uint32, keyName encoding.Name, elems []encoding.RawTLV) {
	delay := PollDelay

	resultBlock, ok := encoding.FindTLV(elems, mps.TypeResultName)
	if !ok {
		ini.logger.Error().Msg("signer processing but no result name replied")
		ini.keyLossTimeout(id, keyName)
		return
	}

	resultName, err := encoding.DecodeName(resultBlock.Value)
	if err != nil {
		ini.logger.Err(err).Msg("signer processing but bad result name replied")
		ini.keyLossTimeout(id, keyName)
		return
	}

	ini.scheduler.Schedule(delay, func() {
		if _, ok := ini.records[id]; !ok {
			return
		}

		poll := &encoding.Interest{
			Name:        resultName,
			CanBePrefix: true,
			MustBeFresh: true,
			Lifetime:    Timeout,
		}

		ini.face.Express(poll,
			func(_ *encoding.Interest, data *encoding.Data) {
				ini.onReply(id, keyName, data)
			},
			func(_ *encoding.Interest, err error) {
				ini.logger.Err(err).Str("key", keyName.String()).Msg("result poll failed")
				ini.keyLossTimeout(id, keyName)
			})
	})
}

// onShare validates and records a returned share, then aggregates as soon
// as the collected set satisfies the schema.
func (ini *Initiator) onShare(id uint32, keyName encoding.Name, elems []encoding.RawTLV) {
	record := ini.records[id]

	sigBlock, ok := encoding.FindTLV(elems, mps.TypeBLSSigValue)
	if !ok {
		record.logger.Error().Msg("signer replied ok without signature value")
		ini.keyLossTimeout(id, keyName)
		return
	}

	err := ini.verifier.VerifySignaturePiece(record.unsignedData,
		record.unsignedData.SigInfo, keyName, sigBlock.Value)
	if err != nil {
		record.logger.Err(err).Str("key", keyName.String()).Msg("bad signature piece")
		ini.keyLossTimeout(id, keyName)
		return
	}

	if _, ok := record.pieces[keyName.String()]; ok {
		return
	}

	record.pieces[keyName.String()] = sigBlock.Value
	record.pieceOrder = append(record.pieceOrder, keyName)
	promShares.Inc()

	record.logger.Debug().Str("key", keyName.String()).
		Int("collected", len(record.pieceOrder)).Msg("collected share")

	if record.schema.PassSchema(record.collected()) {
		ini.successCleanup(id)
	}
}

// keyLossTimeout removes the key from the candidate set of the session and
// fails the session when the remaining candidates can no longer satisfy the
// schema.
func (ini *Initiator) keyLossTimeout(id uint32, keyName encoding.Name) {
	record, ok := ini.records[id]
	if !ok {
		return
	}

	found := false
	remaining := record.availableKeys[:0]
	for _, name := range record.availableKeys {
		if name.Equal(keyName) {
			found = true
			continue
		}

		remaining = append(remaining, name)
	}

	if !found {
		return
	}
	record.availableKeys = remaining

	if _, ok := record.schema.MinSigners(record.availableKeys); !ok {
		ini.failSession(id, "too many signers refused to sign")
	}
}

// onSignTimeout ends the session at its deadline: a final aggregation is
// attempted with the shares in hand.
func (ini *Initiator) onSignTimeout(id uint32) {
	record, ok := ini.records[id]
	if !ok {
		return
	}

	if record.schema.PassSchema(record.collected()) {
		ini.successCleanup(id)
		return
	}

	ini.failSession(id, fmt.Sprintf(
		"insufficient signature pieces at timeout; collected %d pieces", len(record.pieceOrder)))
}

func (ini *Initiator) failSession(id uint32, reason string) {
	record, ok := ini.records[id]
	if !ok {
		return
	}

	ini.deleteRecord(id, record)
	promSessions.WithLabelValues("failed").Inc()

	record.logger.Error().Msg(reason)
	if record.onFailure != nil {
		record.onFailure(record.unsignedData, reason)
	}
}

// successCleanup builds the session artifacts, the signer list packet named
// by the key locator and the packet carrying the aggregate signature, and
// hands them to the success callback.
func (ini *Initiator) successCleanup(id uint32) {
	record, ok := ini.records[id]
	if !ok {
		return
	}

	list, err := mps.NewSignerList(record.pieceOrder...)
	if err != nil {
		ini.failSession(id, fmt.Sprintf("couldn't build signer list: %v", err))
		return
	}

	signerListData := &encoding.Data{
		Name:            record.unsignedData.SigInfo.KeyLocator,
		Content:         list.WireEncode(),
		FreshnessPeriod: record.unsignedData.FreshnessPeriod,
	}

	err = ini.signer.SignData(signerListData)
	if err != nil {
		ini.failSession(id, fmt.Sprintf("couldn't sign signer list: %v", err))
		return
	}

	pieces := make([][]byte, len(record.pieceOrder))
	for i, name := range record.pieceOrder {
		pieces[i] = record.pieces[name.String()]
	}

	err = mps.NewMpsAggregator().BuildMultiSignature(record.unsignedData,
		record.unsignedData.SigInfo, pieces)
	if err != nil {
		ini.failSession(id, fmt.Sprintf("couldn't aggregate: %v", err))
		return
	}

	ini.deleteRecord(id, record)
	promSessions.WithLabelValues("succeeded").Inc()

	record.logger.Debug().Int("signers", list.Size()).Msg("session succeeded")
	if record.onSuccess != nil {
		record.onSuccess(record.unsignedData, signerListData)
	}
}

func (ini *Initiator) deleteRecord(id uint32, record *initiationRecord) {
	if record.deadline != nil {
		record.deadline.Cancel()
	}

	delete(ini.wrapToID, record.wrapper.FullName().String())
	delete(ini.records, id)
}

func millis(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
