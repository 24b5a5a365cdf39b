// Package snmpagent is a read-only SNMP agent exposing the AL device graph
// as a private-enterprise MIB branch, adapted from the teacher's
// pkg/snmp package (its per-device MIB-II agent) but backed by a single
// process-wide model.Graph instead of a simulated device list.
package snmpagent

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// enterpriseRoot is the private-enterprise subtree the AL data model is
// published under: 1.3.6.1.4.1.<PEN>.1905.
const enterpriseRoot = "1.3.6.1.4.1.55555.1905"

// Agent serves read-only GET/GET-NEXT/GET-BULK against a MIB populated
// from a model.Graph snapshot, refreshed on every request.
type Agent struct {
	graph     *model.Graph
	mib       *MIB
	community string
	startTime time.Time
}

// NewAgent creates an agent bound to graph, answering only to community.
func NewAgent(graph *model.Graph, community string) *Agent {
	if community == "" {
		community = "public"
	}
	a := &Agent{
		graph:     graph,
		mib:       NewMIB(),
		community: community,
		startTime: time.Now(),
	}
	a.initSystemMIB()
	return a
}

func (a *Agent) initSystemMIB() {
	a.mib.Set("1.3.6.1.2.1.1.1.0", &OIDValue{
		Type: gosnmp.OctetString, Value: "hmeshd 1905.1/1a abstraction layer agent",
	})
	a.mib.Set("1.3.6.1.2.1.1.2.0", &OIDValue{
		Type: gosnmp.ObjectIdentifier, Value: enterpriseRoot,
	})
	a.mib.SetDynamic("1.3.6.1.2.1.1.3.0", func() *OIDValue {
		ticks := uint32(time.Since(a.startTime).Milliseconds() / 10)
		return &OIDValue{Type: gosnmp.TimeTicks, Value: ticks}
	})
	a.mib.Set("1.3.6.1.2.1.1.4.0", &OIDValue{Type: gosnmp.OctetString, Value: "admin@localhost"})
	a.mib.Set("1.3.6.1.2.1.1.6.0", &OIDValue{Type: gosnmp.OctetString, Value: "unknown"})

	// sysName reflects the local AL MAC rather than a static string, since
	// that is the one stable identity the graph actually carries.
	a.mib.SetDynamic("1.3.6.1.2.1.1.5.0", func() *OIDValue {
		return &OIDValue{Type: gosnmp.OctetString, Value: a.graph.Local().ALMAC.String()}
	})
}

// refreshTopology rebuilds the enterprise subtree from the graph's current
// snapshot. Called at the start of every request so a walk always sees a
// consistent, current picture rather than stale entries from a prior poll.
func (a *Agent) refreshTopology() {
	a.mib.Reset(enterpriseRoot)

	devices := a.graph.Snapshot()
	a.mib.Set(enterpriseRoot+".1.0", &OIDValue{Type: gosnmp.Integer, Value: len(devices)})

	for i, d := range devices {
		base := fmt.Sprintf("%s.2.%d", enterpriseRoot, i+1)
		a.mib.Set(base+".1", &OIDValue{Type: gosnmp.OctetString, Value: d.ALMAC.String()})
		a.mib.Set(base+".2", &OIDValue{Type: gosnmp.Integer, Value: boolInt(d.IsMultiAPController)})
		a.mib.Set(base+".3", &OIDValue{Type: gosnmp.Integer, Value: boolInt(d.IsMultiAPAgent)})
		a.mib.Set(base+".4", &OIDValue{Type: gosnmp.Integer, Value: d.RadioCount})

		for j, r := range d.Radios {
			rbase := fmt.Sprintf("%s.3.%d.%d", enterpriseRoot, i+1, j+1)
			a.mib.Set(rbase+".1", &OIDValue{Type: gosnmp.OctetString, Value: r.UID.String()})
			for k, bss := range r.BSSes {
				bbase := fmt.Sprintf("%s.4.%d.%d.%d", enterpriseRoot, i+1, j+1, k+1)
				a.mib.Set(bbase+".1", &OIDValue{Type: gosnmp.OctetString, Value: bss.SSID})
				a.mib.Set(bbase+".2", &OIDValue{Type: gosnmp.OctetString, Value: bss.BSSID.String()})
				a.mib.Set(bbase+".3", &OIDValue{Type: gosnmp.Integer, Value: int(bss.Band)})
				a.mib.Set(bbase+".4", &OIDValue{Type: gosnmp.Integer, Value: int(bss.Channel)})
			}
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Community returns the configured community string.
func (a *Agent) Community() string { return a.community }

// ProcessPDU answers a decoded request's variable bindings, refreshing the
// topology subtree first so every request sees current graph state.
func (a *Agent) ProcessPDU(pduType gosnmp.PDUType, vars []gosnmp.SnmpPDU) []gosnmp.SnmpPDU {
	a.refreshTopology()

	switch pduType {
	case gosnmp.GetRequest:
		return a.processGet(vars)
	case gosnmp.GetNextRequest:
		return a.processGetNext(vars)
	case gosnmp.GetBulkRequest:
		return a.processGetBulk(vars, 10)
	default:
		if len(vars) == 0 {
			return nil
		}
		return []gosnmp.SnmpPDU{{Name: vars[0].Name, Type: gosnmp.NoSuchObject}}
	}
}

func (a *Agent) processGet(vars []gosnmp.SnmpPDU) []gosnmp.SnmpPDU {
	out := make([]gosnmp.SnmpPDU, len(vars))
	for i, v := range vars {
		val := a.mib.Get(v.Name)
		if val == nil {
			out[i] = gosnmp.SnmpPDU{Name: v.Name, Type: gosnmp.NoSuchObject}
			continue
		}
		out[i] = gosnmp.SnmpPDU{Name: v.Name, Type: val.Type, Value: val.Value}
	}
	return out
}

func (a *Agent) processGetNext(vars []gosnmp.SnmpPDU) []gosnmp.SnmpPDU {
	out := make([]gosnmp.SnmpPDU, len(vars))
	for i, v := range vars {
		nextOID, val := a.mib.GetNext(v.Name)
		if val == nil {
			out[i] = gosnmp.SnmpPDU{Name: v.Name, Type: gosnmp.EndOfMibView}
			continue
		}
		out[i] = gosnmp.SnmpPDU{Name: nextOID, Type: val.Type, Value: val.Value}
	}
	return out
}

func (a *Agent) processGetBulk(vars []gosnmp.SnmpPDU, maxRepetitions int) []gosnmp.SnmpPDU {
	var out []gosnmp.SnmpPDU
	for _, v := range vars {
		oid := v.Name
		for i := 0; i < maxRepetitions; i++ {
			nextOID, val := a.mib.GetNext(oid)
			if val == nil {
				out = append(out, gosnmp.SnmpPDU{Name: oid, Type: gosnmp.EndOfMibView})
				break
			}
			out = append(out, gosnmp.SnmpPDU{Name: nextOID, Type: val.Type, Value: val.Value})
			oid = nextOID
		}
	}
	return out
}
