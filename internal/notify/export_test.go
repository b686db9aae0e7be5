package notify

// EndpointURL exposes topic resolution for tests.
var EndpointURL = endpointURL
