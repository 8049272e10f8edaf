package pipeline

import (
	"context"
	"fmt"
	"net/netip"

	"anytun/application"
	"anytun/domain/packet"
	"anytun/domain/prefix"
	"anytun/infrastructure/cryptography/satp"
)

// classifyTunPayload inspects the IP version nibble of a raw TUN read to
// tell IPv4 from IPv6; a TUN interface carries both without a link-layer
// header to distinguish them.
func classifyTunPayload(payload []byte) packet.PayloadType {
	if len(payload) == 0 {
		return packet.PayloadTypeUnspecified
	}
	switch payload[0] >> 4 {
	case 4:
		return packet.PayloadTypeIPv4
	case 6:
		return packet.PayloadTypeIPv6
	default:
		return packet.PayloadTypeUnspecified
	}
}

func familyForType(t packet.PayloadType) (prefix.Family, bool) {
	switch t {
	case packet.PayloadTypeIPv4:
		return prefix.FamilyIPv4, true
	case packet.PayloadTypeIPv6:
		return prefix.FamilyIPv6, true
	case packet.PayloadTypeEthernet:
		return prefix.FamilyEthernet, true
	default:
		return 0, false
	}
}

func (p *Pipeline) runTunReader(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		plain := p.plainPool.Get()
		n, err := p.cfg.Tun.Read(plain.Buf[packet.HeaderLength():])
		if err != nil {
			p.plainPool.Put(plain)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: tun read: %w", err)
		}
		if n < packet.HeaderLength() {
			p.plainPool.Put(plain)
			continue
		}

		plain.Len = packet.HeaderLength() + n
		if p.cfg.DeviceType == application.DeviceTypeTap {
			plain.SetType(packet.PayloadTypeEthernet)
		} else {
			plain.SetType(classifyTunPayload(plain.Buf[packet.HeaderLength():plain.Len]))
		}

		select {
		case p.plainIn <- plain:
		case <-ctx.Done():
			p.plainPool.Put(plain)
			return nil
		}
	}
}

func (p *Pipeline) runTunWriter(ctx context.Context) error {
	for {
		var plain *packet.PlainPacket
		select {
		case plain = <-p.plainOut:
		case <-ctx.Done():
			return nil
		}

		mismatched := false
		switch p.cfg.DeviceType {
		case application.DeviceTypeTun:
			mismatched = plain.Type() != packet.PayloadTypeIPv4 && plain.Type() != packet.PayloadTypeIPv6
		case application.DeviceTypeTap:
			mismatched = plain.Type() != packet.PayloadTypeEthernet
		}
		if mismatched {
			p.plainPool.Put(plain)
			continue
		}

		if _, err := p.cfg.Tun.Write(plain.Payload()); err != nil {
			p.plainPool.Put(plain)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: tun write: %w", err)
		}
		p.plainPool.Put(plain)
	}
}

func (p *Pipeline) runUDPReader(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		enc := p.encPool.Get()
		n, addr, err := p.cfg.Socket.ReadFromUDPAddrPort(enc.Buf)
		if err != nil {
			p.encPool.Put(enc)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: udp read: %w", err)
		}
		if n < packet.EncryptedHeaderLength()+p.cfg.TagLength {
			p.encPool.Put(enc)
			continue
		}
		enc.Len = n
		enc.TagLen = p.cfg.TagLength

		select {
		case p.encIn <- inboundDatagram{pkt: enc, addr: addr}:
		case <-ctx.Done():
			p.encPool.Put(enc)
			return nil
		}
	}
}

// runUDPWriter logs send failures rather than propagating them: a single
// unreachable peer (connection refused, transient routing failure) must not
// fail-stop the whole pipeline the way a TUN or socket read failure does.
func (p *Pipeline) runUDPWriter(ctx context.Context) error {
	for {
		var out outboundDatagram
		select {
		case out = <-p.encOut:
		case <-ctx.Done():
			return nil
		}

		if _, err := p.cfg.Socket.WriteToUDPAddrPort(out.pkt.Buf[:out.pkt.Len], out.addr); err != nil {
			p.encPool.Put(out.pkt)
			if ctx.Err() != nil {
				return nil
			}
			p.cfg.Logger.Printf("pipeline: udp write to %s: %v", out.addr, err)
			continue
		}
		p.encPool.Put(out.pkt)
	}
}

func (p *Pipeline) runEncryptWorker(ctx context.Context) error {
	for {
		enc := p.encPool.Get()

		var plain *packet.PlainPacket
		select {
		case plain = <-p.plainIn:
		case <-ctx.Done():
			p.encPool.Put(enc)
			return nil
		}

		if p.cfg.Conns.Len() == 0 {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			continue
		}

		mux, ok := p.resolveOutboundMux(plain)
		if !ok {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			continue
		}

		param, err := p.cfg.Conns.Get(mux)
		if err != nil || !param.HasRemote() {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			continue
		}

		cipher := satp.NewCipher(param.KD, application.DirectionOutbound)
		seq := param.NextSeqNr
		if err := cipher.Encrypt(plain.Buf[:plain.Len], enc, seq, p.cfg.SenderID, mux); err != nil {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("pipeline: encrypt mux=%d: %v", mux, err)
			continue
		}

		auth, err := satp.NewAuthAlgo(param.KD, p.cfg.TagLength)
		if err != nil {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("pipeline: auth algo mux=%d: %v", mux, err)
			continue
		}
		if err := auth.GenerateTag(enc, application.DirectionOutbound, seq); err != nil {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("pipeline: generate tag mux=%d: %v", mux, err)
			continue
		}

		param.NextSeqNr = seq + 1
		p.cfg.Conns.Update(mux, param)
		p.plainPool.Put(plain)

		select {
		case p.encOut <- outboundDatagram{pkt: enc, addr: param.RemoteEndpoint}:
		case <-ctx.Done():
			p.encPool.Put(enc)
			return nil
		}
	}
}

// resolveOutboundMux implements spec §4.7 step 4: the route lookup when
// routing is enabled, or the tunnel's single connection otherwise.
func (p *Pipeline) resolveOutboundMux(plain *packet.PlainPacket) (uint16, bool) {
	if p.cfg.Routes == nil {
		return p.cfg.Conns.First()
	}
	family, ok := familyForType(plain.Type())
	if !ok {
		return 0, false
	}
	addr, ok := plain.DstAddr()
	if !ok {
		return 0, false
	}
	mux, err := p.cfg.Routes.GetRoute(family, addr)
	if err != nil {
		return 0, false
	}
	return mux, true
}

func (p *Pipeline) runDecryptWorker(ctx context.Context) error {
	for {
		plain := p.plainPool.Get()

		var in inboundDatagram
		select {
		case in = <-p.encIn:
		case <-ctx.Done():
			p.plainPool.Put(plain)
			return nil
		}
		enc := in.pkt

		p.maybeAutoRegister(enc.Mux(), in.addr)

		param, err := p.cfg.Conns.Get(enc.Mux())
		if err != nil {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			continue
		}

		auth, err := satp.NewAuthAlgo(param.KD, p.cfg.TagLength)
		if err != nil {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("pipeline: auth algo mux=%d: %v", enc.Mux(), err)
			continue
		}
		ok, err := auth.VerifyTag(enc, application.DirectionInbound, enc.SeqNr())
		if err != nil || !ok {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("NOTICE: pipeline: auth tag failed mux=%d seq=%d", enc.Mux(), enc.SeqNr())
			continue
		}

		if param.SeqWindow.CheckAndAdd(enc.SenderID(), enc.SeqNr()) {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			p.cfg.Logger.Printf("NOTICE: pipeline: replay mux=%d sender=%d seq=%d", enc.Mux(), enc.SenderID(), enc.SeqNr())
			continue
		}

		if in.addr != param.RemoteEndpoint {
			param.RemoteEndpoint = in.addr
			param.RoamCount++
			p.cfg.Conns.Update(enc.Mux(), param)
			if p.cfg.Broadcaster != nil {
				p.cfg.Broadcaster.BroadcastConnection(param.ToSyncRecord(enc.Mux()))
			}
		}

		if len(enc.Payload()) <= packet.HeaderLength() {
			p.plainPool.Put(plain)
			p.encPool.Put(enc)
			continue
		}

		cipher := satp.NewCipher(param.KD, application.DirectionInbound)
		n, err := cipher.Decrypt(enc, plain.Buf)
		p.encPool.Put(enc)
		if err != nil {
			p.plainPool.Put(plain)
			p.cfg.Logger.Printf("pipeline: decrypt mux=%d: %v", enc.Mux(), err)
			continue
		}
		plain.Len = n

		select {
		case p.plainOut <- plain:
		case <-ctx.Done():
			p.plainPool.Put(plain)
			return nil
		}
	}
}

// maybeAutoRegister implements spec §4.7 decrypt-worker step 3: an empty
// connection list with an auto-register template configured accepts the
// first datagram for any mux as a new peer.
func (p *Pipeline) maybeAutoRegister(mux uint16, remote netip.AddrPort) {
	if p.cfg.AutoRegisterTemplate == nil || p.cfg.Conns.Len() != 0 {
		return
	}
	param := *p.cfg.AutoRegisterTemplate
	param.RemoteEndpoint = remote
	p.cfg.Conns.Add(mux, param)
	if p.cfg.Broadcaster != nil {
		p.cfg.Broadcaster.BroadcastConnection(param.ToSyncRecord(mux))
	}
}
