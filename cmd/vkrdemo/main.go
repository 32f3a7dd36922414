// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vkrdemo is a minimal host loop proving the wiring between
// view, rgraph, pipeline, material and vkbackend against a real
// window and GPU, the way runsys-core's gpu/examples/drawtri proves
// out its own stack end to end. It drives spec.md §8 scenario 1 (solo
// present: one graphics pass clearing the swapchain image) every
// frame through a single view layer. Swapchain acquire/present and
// surface creation are intentionally left out — that belongs to a
// fuller windowing integration than this demo's scope needs, and
// vkbackend.Device.DrawIndexed/Bind* record against a device-local
// command buffer without yet targeting a real swapchain framebuffer.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/material"
	"github.com/cogentforge/vkr/pipeline"
	"github.com/cogentforge/vkr/rgraph"
	"github.com/cogentforge/vkr/view"
	"github.com/cogentforge/vkr/vkbackend"
)

func init() {
	// Vulkan and glfw both want the creating thread pinned.
	runtime.LockOSThread()
}

const (
	windowWidth  = 1280
	windowHeight = 720
)

func main() {
	if err := run(); err != nil {
		slog.Error("vkrdemo", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw.Init: %w", err)
	}
	defer glfw.Terminate()

	if !glfw.VulkanSupported() {
		return fmt.Errorf("vkrdemo: vulkan not supported by this glfw build")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(windowWidth, windowHeight, "vkr demo", nil, nil)
	if err != nil {
		return fmt.Errorf("glfw.CreateWindow: %w", err)
	}
	defer window.Destroy()

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vk.Init: %w", err)
	}

	instance, err := createInstance()
	if err != nil {
		return err
	}
	defer vk.DestroyInstance(instance, nil)

	gpu, err := pickPhysicalDevice(instance)
	if err != nil {
		return err
	}

	dev, err := vkbackend.New(instance, gpu)
	if err != nil {
		return fmt.Errorf("vkbackend.New: %w", err)
	}
	defer dev.Destroy()

	shader := &noopShader{}
	pipelines := pipeline.New(shader)
	materials := material.New(shader, material.Defaults{})

	graph := rgraph.New(dev, 2)
	present := graph.CreateImage("present", rgraph.ImageDesc{
		Width: windowWidth, Height: windowHeight, Format: "swapchain",
	}, rgraph.FlagPerImage)

	graph.AddPass(rgraph.PassGraphics, "clear").
		AddColorAttachment(rgraph.AttachmentUse{
			ImageHandle: present,
			LoadOp:      rgraph.LoadClear,
			StoreOp:     rgraph.StoreStore,
			Clear:       rgraph.ClearValue{Color: [4]float32{0.1, 0.2, 0.3, 1.0}},
		}).
		SetExecute(func(ctx *rgraph.PassContext, userData any) {}, nil)
	graph.SetPresentImage(present)

	if err := graph.Compile(); err != nil {
		return fmt.Errorf("graph.Compile: %w", err)
	}

	layers := view.New()
	layers.RegisterLayer(view.Config{
		Name:  "main",
		Order: 0,
		Width: windowWidth, Height: windowHeight,
		PassConfigs: []view.PassConfig{{PassName: "clear", ColorTargets: []string{"present"}}},
		Callbacks: view.Callbacks{
			OnRender: func(ctx *view.RenderContext, l *view.Layer) {
				if err := ctx.Graph.Execute(int(ctx.ImageIndex)); err != nil {
					slog.Error("execute failed", "error", err)
				}
			},
		},
	})
	defer layers.Destroy()

	var frameIndex uint64
	lastFrame := time.Now()
	for !window.ShouldClose() {
		glfw.PollEvents()

		now := time.Now()
		dt := float32(now.Sub(lastFrame).Seconds())
		lastFrame = now

		w, h := window.GetSize()
		frame := rgraph.FrameInfo{
			FrameIndex:      frameIndex,
			DeltaTime:       dt,
			WindowW:         uint32(w),
			WindowH:         uint32(h),
			SwapchainFormat: "bgra8_unorm",
		}
		dev.BeginFrame(frameIndex)
		graph.BeginFrame(frame)

		if !graph.IsCompiled() {
			if err := graph.Compile(); err != nil {
				slog.Error("recompile failed", "error", err)
				break
			}
		}

		layers.Render(&view.RenderContext{
			Graph:      graph,
			Pipelines:  pipelines,
			Materials:  materials,
			FrameIndex: frameIndex,
			ImageIndex: 0,
			DeltaTime:  dt,
		})
		graph.EndFrame()
		frameIndex++
	}
	return dev.WaitIdle()
}

func createInstance() (vk.Instance, error) {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "vkrdemo\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "vkr\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 0, 0),
	}

	exts := glfw.GetRequiredInstanceExtensions()

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}, nil, &instance)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkrdemo: vk.CreateInstance failed: %d", ret)
	}
	vk.InitInstance(instance)
	return instance, nil
}

func pickPhysicalDevice(instance vk.Instance) (vk.PhysicalDevice, error) {
	var count uint32
	vk.EnumeratePhysicalDevices(instance, &count, nil)
	if count == 0 {
		return nil, fmt.Errorf("vkrdemo: no vulkan-capable gpu found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(instance, &count, gpus)
	return gpus[0], nil
}

// noopShader stands in for spec.md §6.2's shader system, which this
// module consumes but does not implement (no SPIR-V reflection or
// descriptor-layout compiler is in scope). It lets pipeline/material
// drive their own bookkeeping end to end without a real shader
// backend.
type noopShader struct{}

func (noopShader) Use(name string) bool                     { return true }
func (noopShader) UniformSet(name string, value any) error  { return nil }
func (noopShader) SamplerSet(name string, tex handle.Handle) error { return nil }
func (noopShader) ApplyGlobal() bool                        { return true }
func (noopShader) ApplyInstance() bool                      { return true }
func (noopShader) BindInstance(localStateID uint64)         {}
