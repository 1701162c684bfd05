package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

var pingPayload = []byte("filplus-provider-benchmark")

// pingProbe resolves the target host and sends up to seqMax ICMP echo
// requests, stopping early at the loop deadline so the download window
// stays quiet. Individual send/receive failures are logged and skipped;
// losing half the sequence or more fails the probe. RTTs are in seconds.
func (e *Engine) pingProbe(ctx context.Context, msg domain.JobMessage) domain.Outcome[domain.LatencyStats] {
	u, err := url.Parse(msg.URL)
	if err != nil || u.Hostname() == "" {
		return domain.Errf[domain.LatencyStats]("invalid url: %s", msg.URL)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, u.Hostname())
	if err != nil || len(addrs) == 0 {
		return domain.Errf[domain.LatencyStats]("could not resolve host %s", u.Hostname())
	}
	ip := addrs[0].IP

	network, listenAddr, proto := "udp4", "0.0.0.0", 1
	var echoType icmp.Type = ipv4.ICMPTypeEcho
	if ip.To4() == nil {
		network, listenAddr, proto = "udp6", "::", 58
		echoType = ipv6.ICMPTypeEchoRequest
	}
	conn, err := icmp.ListenPacket(network, listenAddr)
	if err != nil {
		return domain.Errf[domain.LatencyStats]("icmp listen: %v", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := probeLoopDeadline(msg)
	id := rand.Intn(1 << 16)
	dst := &net.UDPAddr{IP: ip}
	buf := make([]byte, 1500)
	var rtts []float64

	for seq := 1; seq <= seqMax; seq++ {
		if !time.Now().Before(deadline) {
			slog.Debug("ping loop deadline reached", slog.Int("seq", seq))
			break
		}
		wm := icmp.Message{
			Type: echoType,
			Body: &icmp.Echo{ID: id, Seq: seq, Data: pingPayload},
		}
		wb, err := wm.Marshal(nil)
		if err != nil {
			slog.Warn("ping marshal failed", slog.Any("error", err))
			continue
		}
		sent := time.Now()
		if _, err := conn.WriteTo(wb, dst); err != nil {
			slog.Warn("ping send failed", slog.Int("seq", seq), slog.Any("error", err))
			continue
		}
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			slog.Warn("ping set deadline failed", slog.Any("error", err))
			continue
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if !os.IsTimeout(err) {
				slog.Warn("ping receive failed", slog.Int("seq", seq), slog.Any("error", err))
			}
			continue
		}
		rm, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			slog.Warn("ping parse failed", slog.Any("error", err))
			continue
		}
		if !matchesEchoReply(rm, seq) {
			continue
		}
		rtts = append(rtts, time.Since(sent).Seconds())
	}

	if len(rtts) < seqMax/2 {
		return domain.Errf[domain.LatencyStats]("Too many packets lost")
	}
	return domain.Ok(latencyStats(rtts))
}

// matchesEchoReply reports whether the parsed message is the echo reply for
// the given sequence number. A late reply to an earlier sequence must not be
// timed against the current send. Datagram ICMP sockets rewrite the echo id,
// so only the sequence is compared.
func matchesEchoReply(rm *icmp.Message, seq int) bool {
	echo, ok := rm.Body.(*icmp.Echo)
	return ok && echo.Seq == seq
}
