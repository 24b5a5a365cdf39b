package engine

import (
	"fmt"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/cmdu"
	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/logging"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
)

func defaultHandlers() map[cmdu.MessageType]handlerFunc {
	return map[cmdu.MessageType]handlerFunc{
		cmdu.MsgTopologyDiscovery:           (*Loop).handleTopologyDiscovery,
		cmdu.MsgTopologyNotification:        (*Loop).handleTopologyNotification,
		cmdu.MsgTopologyQuery:               (*Loop).handleTopologyQuery,
		cmdu.MsgTopologyResponse:            (*Loop).handleTopologyResponse,
		cmdu.MsgVendorSpecific:              (*Loop).handleVendorSpecific,
		cmdu.MsgLinkMetricQuery:             (*Loop).handleLinkMetricQuery,
		cmdu.MsgLinkMetricResponse:          (*Loop).handleLinkMetricResponse,
		cmdu.MsgAPAutoconfigurationSearch:   (*Loop).handleAPAutoconfigurationSearch,
		cmdu.MsgAPAutoconfigurationResponse: (*Loop).handleAPAutoconfigurationResponse,
		cmdu.MsgAPAutoconfigurationWSC:      (*Loop).handleAPAutoconfigurationWSC,
		cmdu.MsgAPAutoconfigurationRenew:    (*Loop).handleAPAutoconfigurationRenew,
		cmdu.MsgPushButtonEventNotification: (*Loop).handlePushButtonEventNotification,
		cmdu.MsgPushButtonJoinNotification:  (*Loop).handlePushButtonJoinNotification,
		cmdu.MsgHigherLayerQuery:            (*Loop).handleHigherLayerQuery,
		cmdu.MsgHigherLayerResponse:         (*Loop).handleHigherLayerResponse,
	}
}

// findTLV returns the first TLV of the given type, or nil.
func findTLV[T tlv.TLV](tlvs []tlv.TLV) (T, bool) {
	var zero T
	for _, t := range tlvs {
		if v, ok := t.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// handleTopologyDiscovery processes an unsolicited periodic announcement:
// it carries the sender's AL MAC and the MAC of the interface it was sent
// on, identifying a new or refreshed neighbor per spec section 3's
// neighbor-link invariant.
func (l *Loop) handleTopologyDiscovery(srcAL model.MAC, c *cmdu.CMDU) error {
	almacTLV, ok := findTLV[*tlv.ALMACAddress](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleTopologyDiscovery", fmt.Errorf("missing AL MAC address TLV"))
	}
	macTLV, ok := findTLV[*tlv.MACAddress](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleTopologyDiscovery", fmt.Errorf("missing MAC address TLV"))
	}

	l.Stats.inc(&l.Stats.TopologyDiscoveryRx)
	almac := model.MAC(almacTLV.MAC)
	if almac != srcAL {
		logging.Debug("engine: TopologyDiscovery AL MAC %s differs from source %s", almac, srcAL)
	}
	dev := l.graph.Touch(almac, time.Now())
	remoteIface := l.ensureInterface(dev, model.MAC(macTLV.MAC))

	local := l.graph.Local()
	localIface := l.ensureInterface(local, l.rxIfaceMAC)
	l.graph.LinkNeighbors(localIface, remoteIface)

	// A device known by at most one interface (a new one, or one whose
	// TopologyResponse listed no further interfaces) gets a TopologyQuery to
	// learn its full interface/neighbor picture; this includes a repeated
	// discovery from such a device.
	if len(dev.Interfaces) <= 1 {
		if err := l.sendTopologyQuery(almac); err != nil {
			logging.Warning("engine: failed to query newly discovered device %s: %v", almac, err)
		}
	}
	return nil
}

func (l *Loop) ensureInterface(dev *model.Device, mac model.MAC) *model.Interface {
	if iface, ok := dev.Interfaces[mac]; ok {
		return iface
	}
	iface := &model.Interface{MAC: mac, Neighbors: make(map[model.MAC]*model.Interface)}
	dev.Interfaces[mac] = iface
	return iface
}

// handleTopologyNotification is a push telling us the sender's topology
// changed; we re-query it for a fresh DeviceInformation/neighbor list.
func (l *Loop) handleTopologyNotification(srcAL model.MAC, c *cmdu.CMDU) error {
	l.graph.Touch(srcAL, time.Now())
	return l.sendTopologyQuery(srcAL)
}

func (l *Loop) sendTopologyQuery(dst model.MAC) error {
	tlvs := []tlv.TLV{&tlv.EndOfMessage{}}
	c, err := l.sendCMDU(dst, cmdu.MsgTopologyQuery, tlvs)
	if err != nil {
		return err
	}
	l.Stats.inc(&l.Stats.TopologyQueryTx)
	fp := model.Fingerprint{SourceALMAC: dst, MessageID: c.MessageID, MessageType: uint16(cmdu.MsgTopologyResponse)}
	return l.registerPending(fp, DefaultInitialBackoff,
		func() { _, _ = l.sendCMDU(dst, cmdu.MsgTopologyQuery, tlvs) },
		func() { logging.Warning("engine: TopologyQuery to %s timed out after %d retries", dst, DefaultMaxRetries) },
	)
}

// handleTopologyQuery answers with our own DeviceInformation TLV, the
// local node's interface list.
func (l *Loop) handleTopologyQuery(srcAL model.MAC, c *cmdu.CMDU) error {
	local := l.graph.Local()
	info := &tlv.DeviceInformation{ALMAC: tlv.MAC(l.localALMAC)}
	for _, iface := range local.Interfaces {
		info.Interfaces = append(info.Interfaces, tlv.DeviceInformationEntry{
			MAC:       tlv.MAC(iface.MAC),
			MediaType: tlv.MediaEthernetGigabit,
		})
	}
	tlvs := []tlv.TLV{info, &tlv.ProfileVersion{Version: tlv.Profile1905_1a}, &tlv.EndOfMessage{}}
	_, err := l.sendCMDU(srcAL, cmdu.MsgTopologyResponse, tlvs)
	return err
}

// handleTopologyResponse updates the graph with the remote device's
// reported interfaces.
func (l *Loop) handleTopologyResponse(srcAL model.MAC, c *cmdu.CMDU) error {
	info, ok := findTLV[*tlv.DeviceInformation](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleTopologyResponse", fmt.Errorf("missing device information TLV"))
	}
	dev := l.graph.Touch(model.MAC(info.ALMAC), time.Now())
	// The responder answers with a message id of its own, so the generic
	// fingerprint match in handleCMDUFrame never clears the query; drop
	// any pending TopologyQuery to this device here instead.
	l.pendingMu.Lock()
	for fp, pe := range l.pending {
		if fp.MessageType == uint16(cmdu.MsgTopologyResponse) && (fp.SourceALMAC == model.MAC(info.ALMAC) || fp.SourceALMAC == srcAL) {
			l.timers.Cancel(pe.token)
			delete(l.pending, fp)
		}
	}
	l.pendingMu.Unlock()
	for _, e := range info.Interfaces {
		l.ensureInterface(dev, model.MAC(e.MAC))
	}
	return nil
}

// handleLinkMetricQuery answers with placeholder transmitter/receiver
// metrics; without a platform/pcapnet link-stats source wired in, this
// core reports zeroed counters rather than fabricating traffic numbers.
func (l *Loop) handleLinkMetricQuery(srcAL model.MAC, c *cmdu.CMDU) error {
	l.Stats.inc(&l.Stats.LinkMetricQueryRx)
	q, ok := findTLV[*tlv.LinkMetricQuery](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleLinkMetricQuery", fmt.Errorf("missing link metric query TLV"))
	}
	if q.Scope == tlv.LinkMetricScopeSpecificNeighbor {
		if l.graph.Get(model.MAC(q.NeighborALMAC)) == nil {
			tlvs := []tlv.TLV{&tlv.LinkMetricResultCode{Code: tlv.LinkMetricResultInvalidNeighbor}, &tlv.EndOfMessage{}}
			_, err := l.sendCMDU(srcAL, cmdu.MsgLinkMetricResponse, tlvs)
			return err
		}
	}

	neighbors := []model.MAC{model.MAC(q.NeighborALMAC)}
	if q.Scope == tlv.LinkMetricScopeAllNeighbors {
		neighbors = neighbors[:0]
		local := l.graph.Local()
		for _, dev := range l.graph.All() {
			if dev.ALMAC == local.ALMAC {
				continue
			}
			neighbors = append(neighbors, dev.ALMAC)
		}
	}

	var tlvs []tlv.TLV
	for _, n := range neighbors {
		if q.MetricType == tlv.LinkMetricTypeTx || q.MetricType == tlv.LinkMetricTypeBoth {
			tlvs = append(tlvs, &tlv.TransmitterLinkMetric{LocalALMAC: tlv.MAC(l.localALMAC), NeighborALMAC: tlv.MAC(n)})
		}
		if q.MetricType == tlv.LinkMetricTypeRx || q.MetricType == tlv.LinkMetricTypeBoth {
			tlvs = append(tlvs, &tlv.ReceiverLinkMetric{LocalALMAC: tlv.MAC(l.localALMAC), NeighborALMAC: tlv.MAC(n)})
		}
	}
	tlvs = append(tlvs, &tlv.EndOfMessage{})
	_, err := l.sendCMDU(srcAL, cmdu.MsgLinkMetricResponse, tlvs)
	return err
}

func (l *Loop) handleLinkMetricResponse(srcAL model.MAC, c *cmdu.CMDU) error {
	// The reported metric TLVs are not stored anywhere, and link metric
	// queries register no pending exchange, so there is nothing to do.
	return nil
}

// handleAPAutoconfigurationSearch processes a Multi-AP controller search
// broadcast from an unconfigured agent. If we hold registrar config for
// the requested band, we answer with a Response naming our registrar role.
func (l *Loop) handleAPAutoconfigurationSearch(srcAL model.MAC, c *cmdu.CMDU) error {
	role, ok := findTLV[*tlv.SearchedRole](c.TLVs)
	if !ok || role.Role != tlv.RoleRegistrar {
		return errs.Ignored("engine.handleAPAutoconfigurationSearch", fmt.Errorf("not a registrar search"))
	}
	bandTLV, ok := findTLV[*tlv.AutoconfigFreqBand](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleAPAutoconfigurationSearch", fmt.Errorf("missing frequency band TLV"))
	}
	band := model.Band(bandTLV.Band)
	if l.registrar == nil {
		return errs.Ignored("engine.handleAPAutoconfigurationSearch", fmt.Errorf("not a registrar"))
	}
	if _, have := l.registrar.ByBand[band]; !have {
		return errs.Ignored("engine.handleAPAutoconfigurationSearch", fmt.Errorf("no registrar config for band %s", band))
	}
	if err := l.checkRegistrarUniqueness(band); err != nil {
		return err
	}

	tlvs := []tlv.TLV{
		&tlv.SupportedRole{Role: tlv.RoleRegistrar},
		&tlv.SupportedFreqBand{Band: bandTLV.Band},
		&tlv.EndOfMessage{},
	}
	_, err := l.sendCMDU(srcAL, cmdu.MsgAPAutoconfigurationResponse, tlvs)
	return err
}

// handleAPAutoconfigurationResponse is received by an enrollee after its
// Search; it now knows a registrar exists and starts the WSC exchange by
// sending its M1 wrapped in an APAutoconfigurationWSC CMDU.
func (l *Loop) handleAPAutoconfigurationResponse(srcAL model.MAC, c *cmdu.CMDU) error {
	if _, ok := findTLV[*tlv.SupportedRole](c.TLVs); !ok {
		return errs.Ignored("engine.handleAPAutoconfigurationResponse", fmt.Errorf("no supported role TLV"))
	}
	var bands []model.Band
	if bandTLV, ok := findTLV[*tlv.SupportedFreqBand](c.TLVs); ok {
		bands = []model.Band{model.Band(bandTLV.Band)}
	}
	radio := l.EnrolleeRadio(l.localALMAC)
	m1, err := radio.BeginSearch(wsc.AuthWPA2PSK, wsc.EncrAES, bands, l.deviceInfo)
	if err != nil {
		return errs.Policy("engine.handleAPAutoconfigurationResponse", err)
	}
	if err := radio.AwaitM2(); err != nil {
		return errs.Policy("engine.handleAPAutoconfigurationResponse", err)
	}
	tlvs := []tlv.TLV{&tlv.WSC{Payload: m1}, &tlv.EndOfMessage{}}
	c2, err := l.sendCMDU(srcAL, cmdu.MsgAPAutoconfigurationWSC, tlvs)
	if err != nil {
		return err
	}
	l.Stats.inc(&l.Stats.WSCExchangesStarted)
	fp := model.Fingerprint{SourceALMAC: srcAL, MessageID: c2.MessageID, MessageType: uint16(cmdu.MsgAPAutoconfigurationWSC)}
	return l.registerPending(fp, DefaultInitialBackoff,
		func() { _, _ = l.sendCMDU(srcAL, cmdu.MsgAPAutoconfigurationWSC, tlvs) },
		func() {
			radio.Timeout()
			l.Stats.inc(&l.Stats.WSCExchangesFailed)
			logging.Warning("engine: WSC exchange with %s timed out", srcAL)
		},
	)
}

// handleAPAutoconfigurationWSC carries either an M1 (registrar side,
// respond with M2) or an M2 (enrollee side, validate and apply).
func (l *Loop) handleAPAutoconfigurationWSC(srcAL model.MAC, c *cmdu.CMDU) error {
	payload, ok := findTLV[*tlv.WSC](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleAPAutoconfigurationWSC", fmt.Errorf("missing WSC TLV"))
	}

	msgType, err := wsc.MessageType(payload.Payload)
	if err != nil {
		return errs.Malformed("engine.handleAPAutoconfigurationWSC", err)
	}

	switch msgType {
	case wsc.MsgTypeM1:
		return l.handleWSCM1(srcAL, payload.Payload)
	case wsc.MsgTypeM2:
		return l.handleWSCM2(srcAL, payload.Payload)
	default:
		return errs.Malformed("engine.handleAPAutoconfigurationWSC", fmt.Errorf("unexpected WSC message type %#x", msgType))
	}
}

func (l *Loop) handleWSCM1(srcAL model.MAC, raw []byte) error {
	if l.registrar == nil {
		return errs.Ignored("engine.handleWSCM1", fmt.Errorf("not a registrar"))
	}
	m1, err := wsc.ParseM1(raw)
	if err != nil {
		return errs.Malformed("engine.handleWSCM1", err)
	}
	band, bss, ok := l.pickRegistrarBSS()
	if !ok {
		return errs.Policy("engine.handleWSCM1", fmt.Errorf("no registrar BSS configured"))
	}
	result, err := wsc.BuildM2(m1, bss, bss.Roles, false, []model.Band{band}, l.deviceInfo)
	if err != nil {
		return errs.PlatformError("engine.handleWSCM1", err)
	}
	tlvs := []tlv.TLV{&tlv.WSC{Payload: result.Bytes}, &tlv.EndOfMessage{}}
	_, err = l.sendCMDU(srcAL, cmdu.MsgAPAutoconfigurationWSC, tlvs)
	if err == nil {
		l.Stats.inc(&l.Stats.WSCExchangesCompleted)
	}
	return err
}

func (l *Loop) pickRegistrarBSS() (model.Band, model.BSSInfo, bool) {
	for band, bss := range l.registrar.ByBand {
		return band, bss, true
	}
	return 0, model.BSSInfo{}, false
}

func (l *Loop) handleWSCM2(srcAL model.MAC, raw []byte) error {
	radio := l.EnrolleeRadio(l.localALMAC)
	result, err := radio.ReceiveM2(raw)
	if err != nil {
		l.Stats.inc(&l.Stats.WSCExchangesFailed)
		return errs.Unauthenticated("engine.handleWSCM2", err)
	}
	l.clearWSCPending(srcAL)
	l.applyBSS(result)
	l.Stats.inc(&l.Stats.WSCExchangesCompleted)
	return nil
}

// clearWSCPending cancels a pending WSC retry registered under any message
// id from srcAL; since the enrollee side correlates by source rather than
// the outbound message id recorded at registerPending time, this scans the
// small pending set rather than requiring an exact id match.
func (l *Loop) clearWSCPending(srcAL model.MAC) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	for fp, pe := range l.pending {
		if fp.SourceALMAC == srcAL && fp.MessageType == uint16(cmdu.MsgAPAutoconfigurationWSC) {
			l.timers.Cancel(pe.token)
			delete(l.pending, fp)
		}
	}
}

func (l *Loop) applyBSS(result *wsc.M2Result) {
	local := l.graph.Local()
	for _, radio := range local.Radios {
		radio.WSC = nil
		for _, bss := range radio.BSSes {
			bss.BSSInfo = result.BSS
			bss.Role = model.RoleAP
		}
	}
}

// handleAPAutoconfigurationRenew is broadcast by a registrar whose BSS
// configuration changed; every configured agent re-runs the WSC exchange
// as if freshly discovered.
func (l *Loop) handleAPAutoconfigurationRenew(srcAL model.MAC, c *cmdu.CMDU) error {
	bandTLV, ok := findTLV[*tlv.AutoconfigFreqBand](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleAPAutoconfigurationRenew", fmt.Errorf("missing frequency band TLV"))
	}
	bands := []model.Band{model.Band(bandTLV.Band)}
	radio := l.EnrolleeRadio(l.localALMAC)
	radio.Teardown()
	m1, err := radio.BeginSearch(wsc.AuthWPA2PSK, wsc.EncrAES, bands, l.deviceInfo)
	if err != nil {
		return errs.Policy("engine.handleAPAutoconfigurationRenew", err)
	}
	if err := radio.AwaitM2(); err != nil {
		return errs.Policy("engine.handleAPAutoconfigurationRenew", err)
	}
	tlvs := []tlv.TLV{&tlv.WSC{Payload: m1}, &tlv.EndOfMessage{}}
	_, err = l.sendCMDU(srcAL, cmdu.MsgAPAutoconfigurationWSC, tlvs)
	return err
}

// handlePushButtonEventNotification relays a peer's push-button press
// announcement; this core does not itself arm a local push-button window
// without an operator-triggered Start (surfaced through ALME, not here).
func (l *Loop) handlePushButtonEventNotification(srcAL model.MAC, c *cmdu.CMDU) error {
	l.graph.Touch(srcAL, time.Now())
	return nil
}

// handlePushButtonJoinNotification records that a push-button pairing
// completed elsewhere in the network, so the join shows up in the graph
// even though this node was not a party to it.
func (l *Loop) handlePushButtonJoinNotification(srcAL model.MAC, c *cmdu.CMDU) error {
	join, ok := findTLV[*tlv.PushButtonJoinNotification](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handlePushButtonJoinNotification", fmt.Errorf("missing join notification TLV"))
	}
	l.graph.Touch(model.MAC(join.InitiatorAL), time.Now())
	return nil
}

// handleVendorSpecific dispatches a vendor TLV's payload to any handler
// registered for its OUI in the vendor registry.
func (l *Loop) handleVendorSpecific(srcAL model.MAC, c *cmdu.CMDU) error {
	v, ok := findTLV[*tlv.VendorSpecific](c.TLVs)
	if !ok {
		return errs.Malformed("engine.handleVendorSpecific", fmt.Errorf("missing vendor specific TLV"))
	}
	handled, err := l.vendors.Dispatch(v.OUI, srcAL, v.Payload)
	if err != nil {
		return errs.PlatformError("engine.handleVendorSpecific", err)
	}
	if handled {
		l.Stats.inc(&l.Stats.VendorDispatched)
	}
	return nil
}

// handleHigherLayerQuery/Response are reserved for a management-plane
// integration this core does not implement; they are acknowledged as
// ignored rather than treated as malformed so a peer polling us does not
// see spurious warnings.
func (l *Loop) handleHigherLayerQuery(srcAL model.MAC, c *cmdu.CMDU) error {
	return errs.Ignored("engine.handleHigherLayerQuery", fmt.Errorf("higher layer management not implemented"))
}

func (l *Loop) handleHigherLayerResponse(srcAL model.MAC, c *cmdu.CMDU) error {
	return errs.Ignored("engine.handleHigherLayerResponse", fmt.Errorf("higher layer management not implemented"))
}
