package sandbox

import (
	"sort"

	"github.com/moby/sys/mountinfo"
)

// hostMountTargets returns every mount target currently visible in the
// host's mount namespace, sorted ascending by path length so that parents
// are processed before their children. The order among targets of equal
// length is not defined.
func hostMountTargets() ([]string, error) {
	infos, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(infos))
	for _, info := range infos {
		targets = append(targets, info.Mountpoint)
	}

	sort.Slice(targets, func(i, j int) bool {
		return len(targets[i]) < len(targets[j])
	})
	return targets, nil
}
