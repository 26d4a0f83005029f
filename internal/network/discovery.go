package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DiscoveredServer is a hidject instance found on the network
type DiscoveredServer struct {
	Addr      string `json:"addr"`
	State     string `json:"state,omitempty"`
	Transport string `json:"transport,omitempty"`
	Target    string `json:"target,omitempty"`
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN probes every address of the local /24 for a hidject API on port.
func ScanLAN(port int) ([]DiscoveredServer, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}
	subnet := strings.Join(parts[:3], ".")

	var (
		servers []DiscoveredServer
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	for i := 1; i <= 254; i++ {
		ip := fmt.Sprintf("%s.%d", subnet, i)
		if ip == localIP {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if s, ok := ProbeServer(addr, 500*time.Millisecond); ok {
				mu.Lock()
				servers = append(servers, s)
				mu.Unlock()
			}
		}(net.JoinHostPort(ip, fmt.Sprint(port)))
	}

	wg.Wait()
	return servers, nil
}

// ProbeServer checks whether addr ("host:port") runs a hidject API and
// reads its status when it is open to unauthenticated callers.
func ProbeServer(addr string, timeout time.Duration) (DiscoveredServer, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return DiscoveredServer{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return DiscoveredServer{}, false
	}
	var health struct {
		Service string `json:"service"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || err != nil || health.Service != "hidject" {
		return DiscoveredServer{}, false
	}

	found := DiscoveredServer{Addr: addr}
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/status", nil)
	if err != nil {
		return found, true
	}
	resp, err = client.Do(req)
	if err != nil {
		return found, true
	}
	defer resp.Body.Close()

	var status struct {
		State     string `json:"state"`
		Transport string `json:"transport"`
		Address   string `json:"address"`
	}
	if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&status) == nil {
		found.State = status.State
		found.Transport = status.Transport
		found.Target = status.Address
	}
	return found, true
}
