package acl

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ownershipPrivileges let an administrator set itself as owner and rewrite
// the DACL of objects it has no access to.
var ownershipPrivileges = []string{
	"SeTakeOwnershipPrivilege",
	"SeRestorePrivilege",
	"SeBackupPrivilege",
}

var (
	privOnce sync.Once
	privErr  error
)

func takeOwnership(path string) error {
	privOnce.Do(func() { privErr = enablePrivileges(ownershipPrivileges) })

	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return fmt.Errorf("read token user: %w", err)
	}
	sid := user.User.Sid

	if err := windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.OWNER_SECURITY_INFORMATION, sid, nil, nil, nil); err != nil {
		if privErr != nil {
			return fmt.Errorf("set owner (privileges unavailable: %v): %w", privErr, err)
		}
		return fmt.Errorf("set owner: %w", err)
	}

	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return fmt.Errorf("read ACL: %w", err)
	}
	current, _, err := sd.DACL()
	if err != nil {
		// No DACL at all already grants everyone full access.
		return nil
	}

	inherit := uint32(windows.NO_INHERITANCE)
	if info, statErr := os.Lstat(path); statErr == nil && info.IsDir() {
		inherit = windows.SUB_CONTAINERS_AND_OBJECTS_INHERIT
	}
	// The grant is merged into the existing DACL; explicit and inherited
	// entries for other principals survive and inheritance stays enabled.
	dacl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.GENERIC_ALL,
		AccessMode:        windows.GRANT_ACCESS,
		Inheritance:       inherit,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_USER,
			TrusteeValue: windows.TrusteeValueFromSID(sid),
		},
	}}, current)
	if err != nil {
		return fmt.Errorf("build ACL: %w", err)
	}

	if err := windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION, nil, nil, dacl, nil); err != nil {
		return fmt.Errorf("grant full control: %w", err)
	}
	return nil
}

// enablePrivileges turns on the named privileges in the process token.
// Privileges the token does not hold are reported but do not stop the rest.
func enablePrivileges(names []string) error {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer token.Close()

	var firstErr error
	for _, name := range names {
		p, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return err
		}
		var luid windows.LUID
		if err := windows.LookupPrivilegeValue(nil, p, &luid); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("lookup %s: %w", name, err)
			}
			continue
		}
		tp := windows.Tokenprivileges{PrivilegeCount: 1}
		tp.Privileges[0] = windows.LUIDAndAttributes{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED}
		if err := windows.AdjustTokenPrivileges(token, false, &tp, uint32(unsafe.Sizeof(tp)), nil, nil); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("enable %s: %w", name, err)
			}
		}
	}
	return firstErr
}
