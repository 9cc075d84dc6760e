package onvif

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"
)

// soapSession talks WS-UsernameToken SOAP to a real ONVIF device.
// Deadlines are enforced by the caller; the HTTP timeout here is only a
// backstop so an abandoned call cannot hold a connection forever.
type soapSession struct {
	deviceAddr string
	mediaAddr  string
	username   string
	password   string
	http       *http.Client
}

// NewSOAPFactory returns the production SessionFactory.
func NewSOAPFactory() SessionFactory {
	return func(t Target) (DeviceSession, error) {
		if t.Host == "" {
			return nil, fmt.Errorf("onvif: empty host")
		}
		port := t.Port
		if port <= 0 {
			port = 80
		}
		return &soapSession{
			deviceAddr: fmt.Sprintf("http://%s:%d/onvif/device_service", t.Host, port),
			username:   t.Username,
			password:   t.Password,
			http:       &http.Client{Timeout: 30 * time.Second},
		}, nil
	}
}

// Init resolves the media service address via GetCapabilities. Devices
// that omit a Media XAddr fall back to the device service endpoint.
func (s *soapSession) Init(ctx context.Context) error {
	body := `<tds:GetCapabilities xmlns:tds="http://www.onvif.org/ver10/device/wsdl">
		<tds:Category>All</tds:Category>
	</tds:GetCapabilities>`

	resp, err := s.do(ctx, s.deviceAddr, body)
	if err != nil {
		return err
	}

	var caps struct {
		Body struct {
			GetCapabilitiesResponse struct {
				Capabilities struct {
					Media struct {
						XAddr string `xml:"XAddr"`
					} `xml:"Media"`
				} `xml:"Capabilities"`
			} `xml:"GetCapabilitiesResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &caps); err != nil {
		return fmt.Errorf("onvif capabilities: %w", err)
	}

	s.mediaAddr = caps.Body.GetCapabilitiesResponse.Capabilities.Media.XAddr
	if s.mediaAddr == "" {
		s.mediaAddr = s.deviceAddr
	}
	return nil
}

func (s *soapSession) GetDeviceInformation(ctx context.Context) (DeviceInfo, error) {
	body := `<tds:GetDeviceInformation xmlns:tds="http://www.onvif.org/ver10/device/wsdl"/>`
	resp, err := s.do(ctx, s.deviceAddr, body)
	if err != nil {
		return DeviceInfo{}, err
	}

	var parsed struct {
		Body struct {
			GetDeviceInformationResponse struct {
				Manufacturer    string
				Model           string
				FirmwareVersion string
				SerialNumber    string
				HardwareId      string
			} `xml:"GetDeviceInformationResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return DeviceInfo{}, fmt.Errorf("onvif device info: %w", err)
	}
	r := parsed.Body.GetDeviceInformationResponse
	return DeviceInfo{
		Manufacturer:    r.Manufacturer,
		Model:           r.Model,
		FirmwareVersion: r.FirmwareVersion,
		SerialNumber:    r.SerialNumber,
		HardwareID:      r.HardwareId,
	}, nil
}

func (s *soapSession) GetProfiles(ctx context.Context) ([]Profile, error) {
	body := `<trt:GetProfiles xmlns:trt="http://www.onvif.org/ver10/media/wsdl"/>`
	resp, err := s.do(ctx, s.media(), body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Body struct {
			GetProfilesResponse struct {
				Profiles []struct {
					Name  string `xml:"Name"`
					Token string `xml:"token,attr"`
				} `xml:"Profiles"`
			} `xml:"GetProfilesResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("onvif profiles: %w", err)
	}

	out := make([]Profile, 0, len(parsed.Body.GetProfilesResponse.Profiles))
	for _, p := range parsed.Body.GetProfilesResponse.Profiles {
		out = append(out, Profile{Token: p.Token, Name: p.Name})
	}
	return out, nil
}

func (s *soapSession) GetStreamURI(ctx context.Context, profileToken string) (string, error) {
	body := fmt.Sprintf(`<trt:GetStreamUri xmlns:trt="http://www.onvif.org/ver10/media/wsdl">
		<trt:StreamSetup>
			<trt:Stream xmlns:tt="http://www.onvif.org/ver10/schema">tt:RTP-Unicast</trt:Stream>
			<trt:Transport xmlns:tt="http://www.onvif.org/ver10/schema">
				<tt:Protocol>tt:RTSP</tt:Protocol>
			</trt:Transport>
		</trt:StreamSetup>
		<trt:ProfileToken>%s</trt:ProfileToken>
	</trt:GetStreamUri>`, profileToken)

	resp, err := s.do(ctx, s.media(), body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Body struct {
			GetStreamUriResponse struct {
				MediaUri struct {
					Uri string `xml:"Uri"`
				} `xml:"MediaUri"`
			} `xml:"GetStreamUriResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return "", fmt.Errorf("onvif stream uri: %w", err)
	}
	return parsed.Body.GetStreamUriResponse.MediaUri.Uri, nil
}

func (s *soapSession) media() string {
	if s.mediaAddr != "" {
		return s.mediaAddr
	}
	return s.deviceAddr
}

func (s *soapSession) do(ctx context.Context, endpoint, inner string) ([]byte, error) {
	envelope := `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
	<s:Header>%s</s:Header>
	<s:Body>%s</s:Body>
</s:Envelope>`
	payload := fmt.Sprintf(envelope, s.securityHeader(), inner)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action=""`)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fault, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("onvif error %d: %s", resp.StatusCode, string(fault))
	}
	return io.ReadAll(resp.Body)
}

// securityHeader builds the WS-UsernameToken digest header. The digest
// hashes the raw nonce bytes, not their base64 form.
func (s *soapSession) securityHeader() string {
	if s.username == "" {
		return ""
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		// Fall back to a time-derived nonce; digest auth still holds.
		nonce = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	created := time.Now().UTC().Format(time.RFC3339)

	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(s.password))
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return fmt.Sprintf(`<Security xmlns="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd">
		<UsernameToken>
			<Username>%s</Username>
			<Password Type="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest">%s</Password>
			<Nonce EncodingType="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary">%s</Nonce>
			<Created xmlns="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">%s</Created>
		</UsernameToken>
	</Security>`, s.username, digest, base64.StdEncoding.EncodeToString(nonce), created)
}
