package argument

import (
	"slices"

	"github.com/zero-day-ai/taskforge/entity"
)

// keysByKind lists the placeholder names each kind can produce. TargetPort
// includes the names set by TargetPortAddress.
var keysByKind = map[entity.Kind][]string{
	entity.KindTarget:         {KeyTarget, KeyHost},
	entity.KindTargetPort:     {KeyTarget, KeyHost, KeyPort, KeyPorts, KeyURL},
	entity.KindTargetEndpoint: {KeyEndpoint, KeyEndpoints},
	entity.KindWordlist:       {KeyWordlist},
	entity.KindOSINT:          {KeyData, KeyTarget, KeyHost, KeyURL, KeyEmail, KeyUsername, KeySecret},
	entity.KindHost:           {KeyTarget, KeyHost},
	entity.KindEnumeration:    {KeyTarget, KeyHost, KeyPort, KeyPorts, KeyProtocol, KeyService, KeyURL},
	entity.KindEndpoint:       {KeyEndpoint, KeyEndpoints},
	entity.KindTechnology:     {KeyTechnology, KeyVersion},
	entity.KindVulnerability:  {KeyCVE},
	entity.KindCredential:     {KeyEmail, KeyUsername, KeySecret},
	entity.KindExploit:        {KeyExploit},
	entity.KindParameter: {
		string(entity.ParamTechnology), string(entity.ParamVersion), string(entity.ParamEndpoint),
		string(entity.ParamCVE), string(entity.ParamExploit), string(entity.ParamWordlist),
	},
}

// KeysFor returns the placeholder names an entity of kind can produce.
// It returns nil for unknown kinds.
func KeysFor(kind entity.Kind) []string {
	return slices.Clone(keysByKind[kind])
}
