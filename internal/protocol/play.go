package protocol

// StartConfiguration moves the clientbound stream of a play connection back
// to configuration. The client answers with ConfigurationAcknowledged.
type StartConfiguration struct{}

func (*StartConfiguration) Kind() PacketKind              { return KindStartConfiguration }
func (*StartConfiguration) Fields(ProtocolVersion) Fields { return nil }

type ConfigurationAcknowledged struct{}

func (*ConfigurationAcknowledged) Kind() PacketKind              { return KindConfigurationAcknowledged }
func (*ConfigurationAcknowledged) Fields(ProtocolVersion) Fields { return nil }
