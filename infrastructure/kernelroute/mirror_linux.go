//go:build linux

// Package kernelroute optionally mirrors anytun's application-level routing
// and forwarding policy into the Linux kernel via nftables, for operators
// who want packet-filter enforcement in addition to anytun's own
// longest-prefix dispatch (spec §4.6). It is entirely optional: a tunnel
// that never constructs a Mirror behaves exactly as the core spec
// describes.
package kernelroute

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"syscall"

	nft "github.com/google/nftables"
	"github.com/google/nftables/expr"

	"anytun/domain/prefix"
)

const ifNameMaxLen = syscall.IFNAMSIZ - 1

// Mirror owns one nftables connection and keeps a destination-prefix
// allowlist set and tun forwarding rules in sync with the application's
// routing table.
type Mirror struct {
	mu   sync.Mutex
	conn *nft.Conn

	tunName    string
	exitDevice string

	table4, table6 *nft.Table
	set4, set6     *nft.Set
}

// New opens an nftables connection and validates the interface names. It
// does not install any rule until EnableForwarding/SyncRoutes is called.
func New(tunName, exitDevice string) (*Mirror, error) {
	if err := validateIfName(tunName); err != nil {
		return nil, fmt.Errorf("kernelroute: tun: %w", err)
	}
	if err := validateIfName(exitDevice); err != nil {
		return nil, fmt.Errorf("kernelroute: exit device: %w", err)
	}
	conn, err := nft.New(nft.AsLasting())
	if err != nil {
		return nil, fmt.Errorf("kernelroute: nftables conn: %w", err)
	}
	return &Mirror{conn: conn, tunName: tunName, exitDevice: exitDevice}, nil
}

// Close releases the underlying netlink socket. It does not remove
// installed rules.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.CloseLasting()
}

// EnableForwarding installs masquerade and bidirectional forwarding rules
// between the tun interface and the exit device, in the teacher's
// append-with-tag, idempotent style.
func (m *Mirror) EnableForwarding() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nat, natCh, err := m.ensureChain("nat", "POSTROUTING", nft.ChainTypeNAT, nft.ChainHookPostrouting, 100, nil)
	if err != nil {
		return err
	}
	if err := m.appendIfMissing(nat, natCh, exprMasqOIF(m.exitDevice), tagMasq(m.exitDevice)); err != nil {
		return err
	}

	accept := nft.ChainPolicyAccept
	filter, fwdCh, err := m.ensureChain("filter", "FORWARD", nft.ChainTypeFilter, nft.ChainHookForward, 0, &accept)
	if err != nil {
		return err
	}
	if err := m.appendIfMissing(filter, fwdCh, exprAcceptIIFtoOIF(m.tunName, m.exitDevice), tagFwd(m.tunName, m.exitDevice)); err != nil {
		return err
	}
	if err := m.appendIfMissing(filter, fwdCh, exprAcceptEstablished(m.exitDevice, m.tunName), tagFwdRet(m.exitDevice, m.tunName)); err != nil {
		return err
	}

	return m.conn.Flush()
}

// DisableForwarding removes the rules EnableForwarding installed.
func (m *Mirror) DisableForwarding() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nat, natCh, err := m.getChain("nat", "POSTROUTING"); err == nil {
		_ = m.delByTag(nat, natCh, tagMasq(m.exitDevice))
	}
	if filter, fwdCh, err := m.getChain("filter", "FORWARD"); err == nil {
		_ = m.delByTag(filter, fwdCh, tagFwd(m.tunName, m.exitDevice))
		_ = m.delByTag(filter, fwdCh, tagFwdRet(m.exitDevice, m.tunName))
	}
	return m.conn.Flush()
}

// SyncRoutes rebuilds the destination-prefix allowlist set from scratch to
// match routes. Call after a sync snapshot or whenever routes are reloaded
// wholesale; use AddRoute/DeleteRoute for incremental updates.
func (m *Mirror) SyncRoutes(routes func(fn func(p prefix.NetworkPrefix, mux uint16))) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureSets(); err != nil {
		return err
	}
	m.conn.FlushSet(m.set4)
	m.conn.FlushSet(m.set6)

	var errs []error
	routes(func(p prefix.NetworkPrefix, _ uint16) {
		if err := m.addSetElement(p); err != nil {
			errs = append(errs, err)
		}
	})
	if err := m.conn.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AddRoute adds one prefix to the live allowlist set.
func (m *Mirror) AddRoute(p prefix.NetworkPrefix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureSets(); err != nil {
		return err
	}
	if err := m.addSetElement(p); err != nil {
		return err
	}
	return m.conn.Flush()
}

// DeleteRoute removes one prefix from the live allowlist set.
func (m *Mirror) DeleteRoute(p prefix.NetworkPrefix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureSets(); err != nil {
		return err
	}
	set, ok := m.setFor(p.Family)
	if !ok {
		return nil
	}
	start, end := intervalBounds(p)
	if err := m.conn.SetDeleteElements(set, []nft.SetElement{{Key: start}, {Key: end, IntervalEnd: true}}); err != nil {
		return fmt.Errorf("kernelroute: delete set element: %w", err)
	}
	return m.conn.Flush()
}

func (m *Mirror) setFor(f prefix.Family) (*nft.Set, bool) {
	switch f {
	case prefix.FamilyIPv6:
		return m.set6, true
	case prefix.FamilyIPv4:
		return m.set4, true
	default:
		return nil, false
	}
}

func (m *Mirror) addSetElement(p prefix.NetworkPrefix) error {
	if err := m.ensureSets(); err != nil {
		return err
	}
	set, ok := m.setFor(p.Family)
	if !ok {
		return nil
	}
	start, end := intervalBounds(p)
	if err := m.conn.SetAddElements(set, []nft.SetElement{{Key: start}, {Key: end, IntervalEnd: true}}); err != nil {
		return fmt.Errorf("kernelroute: add set element: %w", err)
	}
	return nil
}

func (m *Mirror) ensureSets() error {
	if m.set4 != nil && m.set6 != nil {
		return nil
	}
	t4, _, err := m.ensureChain("filter", "FORWARD", nft.ChainTypeFilter, nft.ChainHookForward, 0, func() *nft.ChainPolicy { p := nft.ChainPolicyAccept; return &p }())
	if err != nil {
		return err
	}
	m.table4 = t4
	m.set4 = &nft.Set{Table: t4, Name: "anytun_routes4", KeyType: nft.TypeIPAddr, Interval: true}
	if err := m.conn.AddSet(m.set4, nil); err != nil {
		return fmt.Errorf("kernelroute: add set4: %w", err)
	}

	t6, _, err := m.ensureChainIPv6Table()
	if err != nil {
		return err
	}
	m.table6 = t6
	m.set6 = &nft.Set{Table: t6, Name: "anytun_routes6", KeyType: nft.TypeIP6Addr, Interval: true}
	if err := m.conn.AddSet(m.set6, nil); err != nil {
		return fmt.Errorf("kernelroute: add set6: %w", err)
	}
	return m.conn.Flush()
}

func (m *Mirror) ensureChainIPv6Table() (*nft.Table, *nft.Chain, error) {
	return m.ensureChainFamily(nft.TableFamilyIPv6, "filter", "FORWARD", nft.ChainTypeFilter, nft.ChainHookForward, 0, func() *nft.ChainPolicy { p := nft.ChainPolicyAccept; return &p }())
}

func (m *Mirror) ensureChain(tableName, chainName string, typ nft.ChainType, hook *nft.ChainHook, prio int, policy *nft.ChainPolicy) (*nft.Table, *nft.Chain, error) {
	return m.ensureChainFamily(nft.TableFamilyIPv4, tableName, chainName, typ, hook, prio, policy)
}

func (m *Mirror) ensureChainFamily(fam nft.TableFamily, tableName, chainName string, typ nft.ChainType, hook *nft.ChainHook, prio int, policy *nft.ChainPolicy) (*nft.Table, *nft.Chain, error) {
	t, ch, err := m.getChainFamily(fam, tableName, chainName)
	if err == nil && ch != nil {
		return t, ch, nil
	}
	if t == nil {
		t = &nft.Table{Family: fam, Name: tableName}
		m.conn.AddTable(t)
		if e := m.conn.Flush(); e != nil {
			return nil, nil, fmt.Errorf("kernelroute: add table %v/%s: %w", fam, tableName, e)
		}
	}
	h := *hook
	p := nft.ChainPriority(prio)
	ch = &nft.Chain{Table: t, Name: chainName, Type: typ, Hooknum: &h, Priority: &p}
	if policy != nil {
		ch.Policy = policy
	}
	m.conn.AddChain(ch)
	if e := m.conn.Flush(); e != nil {
		return nil, nil, fmt.Errorf("kernelroute: add chain %s/%s: %w", tableName, chainName, e)
	}
	return t, ch, nil
}

func (m *Mirror) getChain(tableName, chainName string) (*nft.Table, *nft.Chain, error) {
	return m.getChainFamily(nft.TableFamilyIPv4, tableName, chainName)
}

func (m *Mirror) getChainFamily(fam nft.TableFamily, tableName, chainName string) (*nft.Table, *nft.Chain, error) {
	tables, err := m.conn.ListTables()
	if err != nil {
		return nil, nil, fmt.Errorf("kernelroute: list tables: %w", err)
	}
	var tbl *nft.Table
	for _, t := range tables {
		if t.Family == fam && t.Name == tableName {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, nil, errors.New("table not found")
	}
	chains, err := m.conn.ListChains()
	if err != nil {
		return nil, nil, fmt.Errorf("kernelroute: list chains: %w", err)
	}
	for _, ch := range chains {
		if ch.Table != nil && ch.Table.Family == fam && ch.Table.Name == tableName && ch.Name == chainName {
			return tbl, ch, nil
		}
	}
	return tbl, nil, errors.New("chain not found")
}

func (m *Mirror) appendIfMissing(t *nft.Table, ch *nft.Chain, e []expr.Any, tag []byte) error {
	rules, err := m.conn.GetRules(t, ch)
	if err != nil {
		return fmt.Errorf("kernelroute: get rules %s/%s: %w", t.Name, ch.Name, err)
	}
	for _, r := range rules {
		if reflect.DeepEqual(r.UserData, tag) {
			return nil
		}
	}
	m.conn.AddRule(&nft.Rule{Table: t, Chain: ch, Exprs: e, UserData: tag})
	return nil
}

func (m *Mirror) delByTag(t *nft.Table, ch *nft.Chain, tag []byte) error {
	rules, err := m.conn.GetRules(t, ch)
	if err != nil {
		return fmt.Errorf("kernelroute: get rules %s/%s: %w", t.Name, ch.Name, err)
	}
	for _, r := range rules {
		if reflect.DeepEqual(r.UserData, tag) {
			return m.conn.DelRule(r)
		}
	}
	return nil
}

func zstr(s string) []byte { return append([]byte(s), 0x00) }

func exprMasqOIF(dev string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(dev)},
		&expr.Masq{},
	}
}

func exprAcceptIIFtoOIF(iif, oif string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(iif)},
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(oif)},
		&expr.Verdict{Kind: expr.VerdictAccept},
	}
}

func exprAcceptEstablished(iif, oif string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(iif)},
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(oif)},
		&expr.Ct{Register: 1, Key: expr.CtKeySTATE},
		&expr.Bitwise{SourceRegister: 1, DestRegister: 1, Len: 4, Mask: []byte{0x06, 0, 0, 0}, Xor: []byte{0, 0, 0, 0}},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: []byte{0, 0, 0, 0}},
		&expr.Verdict{Kind: expr.VerdictAccept},
	}
}

func tagMasq(dev string) []byte          { return []byte("anytun:nat oif=" + dev) }
func tagFwd(iif, oif string) []byte      { return []byte("anytun:fwd " + iif + "->" + oif) }
func tagFwdRet(iif, oif string) []byte   { return []byte("anytun:fwdret " + iif + "->" + oif) }

func validateIfName(s string) error {
	if s == "" {
		return errors.New("interface name is empty")
	}
	if strings.ContainsRune(s, '/') {
		return fmt.Errorf("interface name contains '/': %q", s)
	}
	if strings.IndexByte(s, 0x00) >= 0 {
		return fmt.Errorf("interface name contains NUL byte: %q", s)
	}
	if len(s) > ifNameMaxLen {
		return fmt.Errorf("interface name too long (max %d): %q", ifNameMaxLen, s)
	}
	return nil
}

// intervalBounds returns the [start, end) nftables interval-set bounds for
// p, as raw address bytes in the width p.Family expects: start is the
// masked network address, end is one past the prefix's last address.
func intervalBounds(p prefix.NetworkPrefix) (start, end []byte) {
	start = make([]byte, len(p.Addr))
	copy(start, p.Addr)
	maskAddr(start, p.Length)

	last := make([]byte, len(start))
	copy(last, start)
	for i := range last {
		bitsInByte := p.Length - i*8
		switch {
		case bitsInByte >= 8:
			continue
		case bitsInByte <= 0:
			last[i] = 0xff
		default:
			last[i] |= byte(0xff) >> uint(bitsInByte)
		}
	}
	return start, incrementAddrBytes(last)
}

// maskAddr zeroes every bit of addr beyond the first bits bits.
func maskAddr(addr []byte, bits int) {
	for i := range addr {
		bitsInByte := bits - i*8
		switch {
		case bitsInByte >= 8:
			continue
		case bitsInByte <= 0:
			addr[i] = 0
		default:
			addr[i] &= byte(0xff) << uint(8-bitsInByte)
		}
	}
}

func incrementAddrBytes(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}
