package identity

import "errors"

// Topics names the broker topics the station uses.
type Topics struct {
	Status  string // outbound, on every relay change
	Control string // inbound, subscribed
	Sensor  string // outbound, periodic readings
}

// Credentials authenticate the station with the broker.
type Credentials struct {
	Username string
	Password string
}

// DeviceInfoInterface exposes the immutable deployment identity of the station.
type DeviceInfoInterface interface {
	GetClientID() string
	GetCredentials() Credentials
	GetBrokerAddr() string
	GetTopics() Topics
}

// DeviceIdentity is fixed at boot and never mutated afterwards.
type DeviceIdentity struct {
	clientID    string
	credentials Credentials
	brokerAddr  string
	topics      Topics
}

// NewDeviceIdentity validates and returns a device identity.
func NewDeviceIdentity(clientID string, credentials Credentials, brokerAddr string, topics Topics) (*DeviceIdentity, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	if brokerAddr == "" {
		return nil, errors.New("broker address is required")
	}
	if topics.Status == "" || topics.Control == "" || topics.Sensor == "" {
		return nil, errors.New("status, control and sensor topics are required")
	}
	return &DeviceIdentity{
		clientID:    clientID,
		credentials: credentials,
		brokerAddr:  brokerAddr,
		topics:      topics,
	}, nil
}

// GetClientID returns the opaque MQTT client id.
func (d *DeviceIdentity) GetClientID() string {
	return d.clientID
}

// GetCredentials returns the broker username and password.
func (d *DeviceIdentity) GetCredentials() Credentials {
	return d.credentials
}

// GetBrokerAddr returns the broker URL, e.g. ssl://host:8883.
func (d *DeviceIdentity) GetBrokerAddr() string {
	return d.brokerAddr
}

// GetTopics returns the station's topics.
func (d *DeviceIdentity) GetTopics() Topics {
	return d.topics
}
