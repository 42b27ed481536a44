package client

import (
	"errors"
	"fmt"

	"github.com/sessmux/sessmux/lib/dispatch"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/status"
	"github.com/sessmux/sessmux/lib/transact"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/serializer"
)

// invocation is the per-server unit of work for one request: the subset
// of targets routed to a single server URI plus the accumulated
// per-target outcomes.
type invocation struct {
	serviceName string
	msgType     common.MessageType
	async       bool
	settings    session.SessionSettings
	serializer  serializer.IRPCSerializer

	indices []int             // original target indices, in request order
	targets []common.TargetOp // wire operations, parallel to indices

	transactionID  transact.TransactionID
	hasTransaction bool
	sessionInfo    session.SessionInformation

	outcomes []common.TargetOutcome // filled by Invoke for synchronous services
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lib/dispatch service.go)
// --------------------------------------------------------------------------

func (inv *invocation) SessionSettings() session.SessionSettings {
	return inv.settings
}

func (inv *invocation) SetTransactionID(id transact.TransactionID) {
	inv.transactionID = id
	inv.hasTransaction = true
}

func (inv *invocation) SetSessionInformation(info session.SessionInformation) {
	inv.sessionInfo = info
}

func (inv *invocation) Invoke(s session.ISession) error {
	msg := common.Message{MsgType: inv.msgType, Targets: inv.targets}
	payload, err := inv.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s request: %w", inv.serviceName, err)
	}

	if inv.async {
		if !inv.hasTransaction {
			return status.ProgrammingErrorf("asynchronous %s invocation has no transaction id", inv.serviceName)
		}
		return s.SendAsync(inv.serviceName, uint64(inv.transactionID), payload)
	}

	respBytes, err := s.Send(inv.serviceName, payload)
	if err != nil {
		return err
	}

	resp := &common.Message{}
	if err := inv.serializer.Deserialize(respBytes, resp); err != nil {
		return status.TransportError(fmt.Errorf("failed to deserialize %s response: %w", inv.serviceName, err))
	}
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return status.TransportError(fmt.Errorf("server error on %s: %s", inv.sessionInfo.ServerURI, resp.Err))
	}
	if resp.MsgType != msg.MsgType {
		return status.TransportError(fmt.Errorf("unexpected message type %s, expected %s", resp.MsgType, msg.MsgType))
	}
	if len(resp.Outcomes) != len(inv.targets) {
		return status.TransportError(fmt.Errorf("%s response carries %d outcomes for %d targets",
			inv.serviceName, len(resp.Outcomes), len(inv.targets)))
	}

	inv.outcomes = resp.Outcomes
	return nil
}

func (inv *invocation) MergeInto(result *Result) error {
	if len(inv.outcomes) != len(inv.indices) {
		return status.ProgrammingErrorf("invocation for %s merged before its outcomes arrived", inv.serviceName)
	}
	for k, idx := range inv.indices {
		if idx < 0 || idx >= len(result.Outcomes) {
			return status.ProgrammingErrorf("target index %d outside result of size %d", idx, len(result.Outcomes))
		}
		o := inv.outcomes[k]
		outcome := Outcome{Processed: true, Value: o.Value}
		if o.Err != "" {
			outcome.Err = errors.New(o.Err)
		}
		result.Outcomes[idx] = outcome
	}
	return nil
}

// --------------------------------------------------------------------------
// Invocation Builder
// --------------------------------------------------------------------------

// invocationBuilder partitions a request's masked targets by destination
// server URI, one invocation per distinct server.
type invocationBuilder struct {
	serviceName string
	msgType     common.MessageType
	async       bool
	settings    session.SessionSettings
	serializer  serializer.IRPCSerializer
}

func (b *invocationBuilder) Build(req *Request, mask dispatch.Mask) (map[string]dispatch.IInvocation[*Result], error) {
	invocations := make(map[string]dispatch.IInvocation[*Result])
	for i, t := range req.Targets {
		if !mask.IsSet(i) {
			continue
		}
		if t.ServerURI == "" {
			return nil, fmt.Errorf("target %d of %s request %d has no server URI", i, b.serviceName, req.RequestHandle())
		}

		var inv *invocation
		if existing, ok := invocations[t.ServerURI]; ok {
			inv = existing.(*invocation)
		} else {
			inv = &invocation{
				serviceName: b.serviceName,
				msgType:     b.msgType,
				async:       b.async,
				settings:    b.settings,
				serializer:  b.serializer,
			}
			invocations[t.ServerURI] = inv
		}

		inv.indices = append(inv.indices, i)
		inv.targets = append(inv.targets, common.TargetOp{Address: t.Address, Value: t.Value})
	}
	return invocations, nil
}
