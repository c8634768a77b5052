package security

import (
	"fmt"
	"regexp"
	"strings"
)

// commandRules holds the blocklist applied to proposed shell commands.
type commandRules struct {
	// blockedCommands are exact command strings that are blocked
	blockedCommands []string
	// blockedSubstrings are substrings that indicate dangerous commands
	blockedSubstrings []string
	// blockedPatterns are regex patterns that should never be allowed
	blockedPatterns []*regexp.Regexp
}

func defaultCommandRules() commandRules {
	return commandRules{
		blockedCommands: []string{
			// Classic fork bombs
			":(){:|:&};:",
			":(){ :|:& };:",
		},
		blockedSubstrings: []string{
			// Destructive filesystem operations
			"rm -rf /",
			"rm -rf /*",
			"rm -rf ~",
			"rm -rf $HOME",
			"rm -rf ${HOME}",
			"rm -fr /",
			"rm -fr /*",
			// Disk operations
			"mkfs.",
			"mkfs ",
			"> /dev/sda",
			"> /dev/nvme",
			"dd if=/dev/zero of=/dev/sd",
			"dd if=/dev/zero of=/dev/nvme",
			"dd if=/dev/urandom of=/dev/sd",
			// Permission attacks
			"chmod -R 777 /",
			"chmod 777 /",
			"chown -R root /",
			// Network attacks / reverse shells
			"nc -e",
			"nc -c",
			"ncat -e",
			"bash -i >& /dev/tcp",
			"/dev/tcp/",
			"/dev/udp/",
			// Sensitive file access
			"/etc/shadow",
			"/etc/passwd",
			".ssh/id_rsa",
			".ssh/id_ed25519",
			".aws/credentials",
			".kube/config",
			// Kernel/system modification
			"insmod ",
			"rmmod ",
			"modprobe ",
			"/proc/sys",
			"/sys/kernel",
			// Boot modification
			"/boot/",
			"grub-install",
		},
		blockedPatterns: []*regexp.Regexp{
			// Fork bomb patterns
			regexp.MustCompile(`:\s*\(\s*\)\s*\{`),
			regexp.MustCompile(`\$\{?0\}?\s*[&|]\s*\$\{?0\}?`),
			regexp.MustCompile(`while\s+true\s*;\s*do.*&`),
			regexp.MustCompile(`\byes\s*\|\s*sh`),

			// Recursive deletion with variable expansion
			regexp.MustCompile(`rm\s+(-[rRf]+\s+)+/`),
			regexp.MustCompile(`rm\s+(-[rRf]+\s+)+\$`),

			// dd to block devices
			regexp.MustCompile(`dd\s+.*of=/dev/[snhv]d`),
			regexp.MustCompile(`dd\s+.*of=/dev/nvme`),

			// Download piped to shell
			regexp.MustCompile(`(?i)(wget|curl)\s+.*\|\s*(ba)?sh`),
			regexp.MustCompile(`base64\s+-d.*\|\s*(ba)?sh`),

			// crontab / ssh key persistence
			regexp.MustCompile(`echo\s+.*>>\s*/etc/cron`),
			regexp.MustCompile(`echo\s+.*>>\s*.*authorized_keys`),

			// History clearing
			regexp.MustCompile(`>\s*~/\..*history`),
			regexp.MustCompile(`history\s+-c`),

			// Shell injection constructs
			regexp.MustCompile(`[;&|]\s*(ba)?sh\b`),
			regexp.MustCompile(`(?i)eval\s+.*(base64|curl|wget|nc\b)`),
			regexp.MustCompile(`>\s*/dev/(tcp|udp)/`),
		},
	}
}

func (r commandRules) check(command string) Result {
	if strings.TrimSpace(command) == "" {
		return denied("empty command", "")
	}

	normalized := strings.ToLower(command)

	for _, blocked := range r.blockedCommands {
		if command == blocked || normalized == strings.ToLower(blocked) {
			return denied("blocked command", blocked)
		}
	}

	for _, substr := range r.blockedSubstrings {
		if strings.Contains(normalized, strings.ToLower(substr)) {
			return denied(fmt.Sprintf("contains blocked pattern: %s", substr), substr)
		}
	}

	for _, pattern := range r.blockedPatterns {
		if pattern.MatchString(command) {
			return denied("matches dangerous pattern", pattern.String())
		}
	}

	return allowed("command passed validation")
}
