package kernel

// ComponentTunnelRequest configures pid for a tunnel with a neighbouring
// component (§6). supplier reports whether this side supplies the
// buffers; peer is nil to tear an existing tunnel down.
func (k *Kernel) ComponentTunnelRequest(pid int, peer TunnelPeer, supplier bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.checkPortIndex(pid); err != nil {
		return err
	}
	p := k.portLocked(pid)
	if err := p.SetupTunnel(peer != nil, supplier); err != nil {
		return err
	}
	if peer == nil {
		delete(k.tunnelPeers, pid)
		return nil
	}
	k.tunnelPeers[pid] = peer
	return nil
}
