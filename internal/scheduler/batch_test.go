package scheduler

import "testing"

func TestBatchDescriptorResetRestoresTemplate(t *testing.T) {
	desc := NewBatchDescriptor(
		[]Setting{{Flag: "nodes", Value: "1"}, {Flag: "output", Value: "log.slurm.stdOut"}},
		[]string{"ips.py --simulation={config_files}"},
	)

	desc.UpdateSetting("nodes", "6")
	desc.UpdateSetting("account", "m1709")
	desc.UpdateCommands(CommandFields{ConfigFiles: "a/ips.ftx.config,b/ips.ftx.config"})

	if v, _ := desc.Setting("nodes"); v != "6" {
		t.Errorf("nodes = %q; want 6", v)
	}
	if v, ok := desc.Setting("account"); !ok || v != "m1709" {
		t.Errorf("account = %q, %v; want m1709", v, ok)
	}
	if desc.Commands[0] != "ips.py --simulation=a/ips.ftx.config,b/ips.ftx.config" {
		t.Errorf("command = %q", desc.Commands[0])
	}

	desc.Reset()
	if v, _ := desc.Setting("nodes"); v != "1" {
		t.Errorf("nodes after reset = %q; want 1", v)
	}
	if _, ok := desc.Setting("account"); ok {
		t.Errorf("account should be gone after reset")
	}
	if desc.Commands[0] != "ips.py --simulation={config_files}" {
		t.Errorf("command after reset = %q", desc.Commands[0])
	}
}

func TestBatchDescriptorCloneIsIndependent(t *testing.T) {
	desc := NewBatchDescriptor([]Setting{{Flag: "nodes", Value: "1"}}, []string{"echo"})
	clone := desc.Clone()
	clone.UpdateSetting("nodes", "2")
	clone.TemplateCommands[0] = "changed"

	if v, _ := desc.Setting("nodes"); v != "1" {
		t.Errorf("original nodes = %q; want 1", v)
	}
	if desc.TemplateCommands[0] != "echo" {
		t.Errorf("original template changed to %q", desc.TemplateCommands[0])
	}
	if !Detached().Detached {
		t.Errorf("Detached() should be detached")
	}
}
