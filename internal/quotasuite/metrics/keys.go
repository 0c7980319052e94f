package metrics

import "fmt"

// AttributeKey is the fully-qualified identifier of a monitored numeric
// attribute, in the canonical form
//
//	namespace:objectName[,clientId=...]:attributeName
//
// e.g. "client.producer:producer-metrics,clientId=overridden_id:outgoing-byte-rate".
type AttributeKey string

func NewAttributeKey(namespace, objectName, attribute string) AttributeKey {
	return AttributeKey(fmt.Sprintf("%s:%s:%s", namespace, objectName, attribute))
}

func NewScopedAttributeKey(namespace, objectName, clientId, attribute string) AttributeKey {
	return AttributeKey(fmt.Sprintf("%s:%s,clientId=%s:%s", namespace, objectName, clientId, attribute))
}

// Keys for the four rates the compliance validator reads.

func ProducerByteRateKey(clientId string) AttributeKey {
	return NewScopedAttributeKey("client.producer", "producer-metrics", clientId, "outgoing-byte-rate")
}

func ConsumerByteRateKey(clientId string) AttributeKey {
	return NewScopedAttributeKey("client.consumer", "consumer-metrics", clientId, "bytes-per-sec")
}

func BrokerBytesInKey() AttributeKey {
	return NewAttributeKey("broker.server", "broker-topic-metrics", "bytes-in-per-sec")
}

func BrokerBytesOutKey() AttributeKey {
	return NewAttributeKey("broker.server", "broker-topic-metrics", "bytes-out-per-sec")
}
