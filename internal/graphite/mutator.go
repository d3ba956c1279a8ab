package graphite

import "strings"

// Mutator rewrites a client name inside metric output so that dots in a
// hostname do not create extra path levels.
type Mutator struct {
	Reverse bool
	Replace string
}

func NewMutator(reverse bool, replace string) Mutator {
	if replace == "" {
		replace = "_"
	}
	return Mutator{Reverse: reverse, Replace: replace}
}

func (m Mutator) RenameClient(clientName string) string {
	renamed := clientName
	if m.Reverse {
		parts := strings.Split(clientName, ".")
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
		renamed = strings.Join(parts, ".")
	}
	return strings.ReplaceAll(renamed, ".", m.Replace)
}

func (m Mutator) Mutate(output, clientName string) string {
	if clientName == "" {
		return output
	}
	return strings.ReplaceAll(output, clientName, m.RenameClient(clientName))
}

// HostnameSegment replaces dots in a hostname for use as one path segment.
func HostnameSegment(hostname, replace string) string {
	return strings.ReplaceAll(hostname, ".", replace)
}
