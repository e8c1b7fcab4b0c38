package protocol

import (
	"github.com/rs/zerolog"
	"go.dedis.ch/ndnmps"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/face"
	"go.dedis.ch/ndnmps/mps"
	"golang.org/x/xerrors"
)

// requestInstance is the state of one sign request, keyed by its request
// id. The version counts the result polls served while processing.
type requestInstance struct {
	code           mps.ReplyCode
	version        uint64
	signatureValue []byte
}

// SignerEndpoint answers sign requests: it fetches the wrapper packet named
// in the request, validates the unsigned packet inside, computes the
// signature share with its BLS key, and serves the result to pollers.
type SignerEndpoint struct {
	signer       *mps.MpsSigner
	prefix       encoding.Name
	face         face.Face
	packetSigner PacketSigner

	interestVerify InterestVerifyCallback
	dataVerify     DataVerifyCallback

	results map[uint64]*requestInstance
	regs    []face.Registration
	logger  zerolog.Logger
}

// NewSignerEndpoint returns an endpoint listening on <prefix>/mps/sign and
// serving results on <prefix>/mps/result. The packet signer signs every
// outgoing packet with the endpoint's own key, which is separate from its
// BLS key.
func NewSignerEndpoint(signer *mps.MpsSigner, prefix encoding.Name,
	f face.Face, packetSigner PacketSigner) (*SignerEndpoint, error) {

	e := &SignerEndpoint{
		signer:       signer,
		prefix:       prefix,
		face:         f,
		packetSigner: packetSigner,
		results:      make(map[uint64]*requestInstance),
		logger:       ndnmps.Logger.With().Str("role", "signer").Str("prefix", prefix.String()).Logger(),
	}

	reg, err := f.Register(prefix.AppendStr("mps", "sign"), e.onSignRequest)
	if err != nil {
		return nil, err
	}
	e.regs = append(e.regs, reg)

	reg, err = f.Register(prefix.AppendStr("mps", "result"), e.onResultFetch)
	if err != nil {
		return nil, err
	}
	e.regs = append(e.regs, reg)

	return e, nil
}

// SetInterestVerifyCallback installs the authorization check applied to
// incoming sign requests. Requests are rejected while no callback is set.
func (e *SignerEndpoint) SetInterestVerifyCallback(fn InterestVerifyCallback) {
	e.interestVerify = fn
}

// SetDataVerifyCallback installs the check applied to the unsigned packet
// before a share is produced. Packets are rejected while no callback is
// set.
func (e *SignerEndpoint) SetDataVerifyCallback(fn DataVerifyCallback) {
	e.dataVerify = fn
}

// Close unregisters the prefixes of the endpoint.
func (e *SignerEndpoint) Close() {
	for _, reg := range e.regs {
		reg.Unregister()
	}
	e.regs = nil
}

func (e *SignerEndpoint) onSignRequest(itr *encoding.Interest) {
	if e.interestVerify == nil || !e.interestVerify(itr) {
		promSignRequests.WithLabelValues(mps.Unauthorized.String()).Inc()
		e.reply(generateAck(itr.Name, e.prefix, mps.Unauthorized, 0))
		return
	}

	wrapperName, err := e.parseSignRequest(itr)
	if err != nil {
		e.logger.Err(err).Msg("couldn't decode invocation request")
		promSignRequests.WithLabelValues(mps.BadRequest.String()).Inc()
		e.reply(generateAck(itr.Name, e.prefix, mps.BadRequest, 0))
		return
	}

	requestID := randomUint64()
	e.results[requestID] = &requestInstance{code: mps.Processing}

	promSignRequests.WithLabelValues(mps.Processing.String()).Inc()
	e.reply(generateAck(itr.Name, e.prefix, mps.Processing, requestID))

	fetch := &encoding.Interest{
		Name:        wrapperName,
		MustBeFresh: true,
		Lifetime:    Timeout,
	}

	e.face.Express(fetch,
		func(_ *encoding.Interest, data *encoding.Data) {
			e.onWrapper(requestID, data)
		},
		func(_ *encoding.Interest, err error) {
			e.logger.Err(err).Msg("wrapper fetch failed")
			if instance, ok := e.results[requestID]; ok {
				instance.code = mps.FailedDependency
			}
		})
}

// parseSignRequest extracts the wrapper name from the request parameters.
// The wrapper name must end with an implicit digest so the wrapper is
// content-addressed, and the request name must carry a parameters digest.
func (e *SignerEndpoint) parseSignRequest(itr *encoding.Interest) (encoding.Name, error) {
	elems, err := encoding.DecodeTLVs(itr.AppParameters)
	if err != nil {
		return encoding.Name{}, xerrors.Errorf("couldn't parse parameters: %v", err)
	}

	param, ok := encoding.FindTLV(elems, mps.TypeParameterDataName)
	if !ok {
		return encoding.Name{}, xerrors.New("missing parameter data name")
	}

	wrapperName, err := encoding.DecodeName(param.Value)
	if err != nil {
		return encoding.Name{}, xerrors.Errorf("couldn't parse wrapper name: %v", err)
	}

	if wrapperName.Size() == 0 || !wrapperName.Get(-1).IsImplicitDigest() {
		return encoding.Name{}, xerrors.New("digest not found for data")
	}

	if itr.Name.Size() != e.prefix.Size()+3 ||
		!itr.Name.Get(e.prefix.Size()+2).IsParamsDigest() {
		return encoding.Name{}, xerrors.New("interest does not end with parameter digest")
	}

	return wrapperName, nil
}

func (e *SignerEndpoint) onWrapper(requestID uint64, wrapper *encoding.Data) {
	instance, ok := e.results[requestID]
	if !ok {
		return
	}

	unsigned, err := encoding.DecodeData(wrapper.Content)
	if err != nil {
		e.logger.Err(err).Msg("unsigned data decoding error")
		instance.code = mps.FailedDependency
		return
	}

	if e.dataVerify == nil || !e.dataVerify(unsigned) {
		e.logger.Error().Msg("unsigned data verification error")
		instance.code = mps.Unauthorized
		return
	}

	piece, err := e.signer.GetSignature(unsigned, unsigned.SigInfo)
	if err != nil {
		e.logger.Err(err).Msg("couldn't compute share")
		instance.code = mps.InternalError
		return
	}

	instance.code = mps.OK
	instance.signatureValue = piece
}

// onResultFetch serves <prefix>/mps/result/<id>[/v=<n>]. Unknown or
// replayed request ids are dropped so the poll times out.
func (e *SignerEndpoint) onResultFetch(itr *encoding.Interest) {
	size := itr.Name.Size()

	switch {
	case size == e.prefix.Size()+3:
	case size == e.prefix.Size()+4 && itr.Name.Get(-1).IsVersion():
	default:
		e.logger.Error().Msg("bad result request name format")
		return
	}

	requestID, err := itr.Name.Get(e.prefix.Size() + 2).Number()
	if err != nil {
		e.logger.Err(err).Msg("bad result request id")
		return
	}

	instance, ok := e.results[requestID]
	if !ok {
		return
	}

	result := &encoding.Data{
		Name:            itr.Name,
		FreshnessPeriod: Timeout,
	}

	var content []byte
	content = append(content, encoding.MakeTLV(mps.TypeStatus, []byte(instance.code.String()))...)

	switch instance.code {
	case mps.Processing:
		instance.version++

		nextName := e.prefix.
			AppendStr("mps", "result").
			Append(encoding.NewNumberComponent(requestID)).
			Append(encoding.NewVersionComponent(instance.version))

		content = append(content, encoding.MakeNonNegTLV(mps.TypeResultAfter,
			uint64(EstimateProcessTime.Milliseconds()))...)
		content = append(content, encoding.MakeTLV(mps.TypeResultName, nextName.WireEncode())...)
	case mps.OK:
		content = append(content, encoding.MakeTLV(mps.TypeBLSSigValue, instance.signatureValue)...)
		delete(e.results, requestID)
	default:
		delete(e.results, requestID)
	}

	result.Content = content
	e.reply(result)
}

func (e *SignerEndpoint) reply(data *encoding.Data) {
	err := e.packetSigner.SignData(data)
	if err != nil {
		e.logger.Err(err).Msg("couldn't sign reply")
		return
	}

	err = e.face.Put(data)
	if err != nil {
		e.logger.Err(err).Msg("couldn't publish reply")
	}
}

// generateAck builds the acknowledgment of a sign request. Only a
// processing ack advertises a wait estimate and a result name.
func generateAck(interestName, prefix encoding.Name, code mps.ReplyCode, requestID uint64) *encoding.Data {
	var content []byte
	content = append(content, encoding.MakeTLV(mps.TypeStatus, []byte(code.String()))...)

	if code == mps.Processing {
		resultName := prefix.
			AppendStr("mps", "result").
			Append(encoding.NewNumberComponent(requestID))

		content = append(content, encoding.MakeNonNegTLV(mps.TypeResultAfter,
			uint64(EstimateProcessTime.Milliseconds()))...)
		content = append(content, encoding.MakeTLV(mps.TypeResultName, resultName.WireEncode())...)
	}

	return &encoding.Data{
		Name:            interestName,
		FreshnessPeriod: Timeout,
		Content:         content,
	}
}
